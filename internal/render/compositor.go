package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stockmerge/internal/ledger"
	"stockmerge/internal/media"
)

// Compositor renders the final video from a Plan.
type Compositor struct {
	FFmpeg   *media.FFmpeg
	Ledger   *ledger.Ledger
	Encoding media.Encoding
}

// Args builds the final ffmpeg invocation. The output keeps the primary's
// duration and native frame rate, and its audio when present.
func (c *Compositor) Args(plan Plan, out string) []string {
	args := []string{"-i", plan.Primary.Path}
	for _, track := range plan.Tracks {
		args = append(args, "-i", track.Path)
	}
	args = append(args,
		"-filter_complex", BuildCompositeGraph(plan.Tracks),
		"-map", "[vout]",
		"-map", "0:a?",
	)
	args = append(args, c.Encoding.VideoArgs()...)
	if plan.Primary.FrameRate != "" {
		args = append(args, "-r", plan.Primary.FrameRate)
	}
	args = append(args, c.Encoding.AudioArgs()...)
	args = append(args,
		"-t", media.FormatSeconds(plan.Primary.Duration),
		"-movflags", "+faststart",
		out,
	)
	return args
}

// Compose renders into the run directory and then moves the result to
// output, so a failed render never leaves a partial file at output.
func (c *Compositor) Compose(ctx context.Context, plan Plan, output string, logw io.Writer) error {
	ext := filepath.Ext(output)
	if ext == "" {
		ext = ".mp4"
	}
	tmp := c.Ledger.Path("final", ext)
	if err := c.FFmpeg.Run(ctx, "compose", c.Args(plan, tmp), logw); err != nil {
		return err
	}
	return publish(tmp, output)
}

// publish moves src to dst, copying when a rename crosses filesystems.
func publish(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open rendered file: %w", err)
	}
	defer in.Close()

	partial := dst + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(partial)
		return fmt.Errorf("copy output: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(partial, dst); err != nil {
		os.Remove(partial)
		return fmt.Errorf("publish output: %w", err)
	}
	return nil
}
