package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Zelak312/blockmotion/blockmatch"
)

type FFProbeOutput struct {
	Streams []struct {
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		FrameRate      string `json:"r_frame_rate"`
		FrameCount     string `json:"nb_frames"`
		FrameCountRead string `json:"nb_read_frames"`
	} `json:"streams"`
}

// VideoProcessor streams decoded luma frames out of ffmpeg and, optionally,
// streams predicted frames into a second ffmpeg encoding a video.
type VideoProcessor struct {
	videoInfo VideoInfo
	options   FFmpegOptions
	frameSize int

	// I/O handlers
	reader *Command
	writer *Command
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

type VideoInfo struct {
	InputPath  string
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int64
}

func parseVideoInfoFFProbeOutput(output string) (*FFProbeOutput, error) {
	var probeOutput FFProbeOutput
	if err := json.Unmarshal([]byte(output), &probeOutput); err != nil {
		return nil, fmt.Errorf("parsing probe output: %w\n%v", err, output)
	}

	if len(probeOutput.Streams) == 0 {
		return nil, fmt.Errorf("no video streams found")
	}

	return &probeOutput, nil
}

func parseFrameRate(rate string) (float64, error) {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid framerate format %q", rate)
	}

	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing framerate numerator: %w", err)
	}

	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing framerate denominator: %w", err)
	}

	if den == 0 {
		return 0, fmt.Errorf("invalid framerate %q", rate)
	}

	return num / den, nil
}

func GetVideoInfo(ctx context.Context, inputPath string) (*VideoInfo, string, error) {
	cmd := NewCommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-of", "json",
		inputPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, output, err
	}

	ffprobeOutput, err := parseVideoInfoFFProbeOutput(output)
	if err != nil {
		return nil, output, err
	}

	mainStream := ffprobeOutput.Streams[0]
	frameRate, err := parseFrameRate(mainStream.FrameRate)
	if err != nil {
		return nil, output, err
	}

	var videoInfo VideoInfo
	videoInfo.InputPath = inputPath
	videoInfo.Width = mainStream.Width
	videoInfo.Height = mainStream.Height
	videoInfo.FrameRate = frameRate

	if mainStream.FrameCount != "" && mainStream.FrameCount != "N/A" {
		// container already contains frame count, no need to count
		frameCount, err := strconv.ParseInt(mainStream.FrameCount, 10, 64)
		if err != nil {
			return nil, output, err
		}

		videoInfo.FrameCount = frameCount
		return &videoInfo, "", nil
	}

	// container doesn't have frame count, counting frames
	cmd = NewCommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_read_frames",
		"-of", "json",
		inputPath)

	output, err = cmd.CombinedOutput()
	if err != nil {
		return nil, output, err
	}

	ffprobeCountOutput, err := parseVideoInfoFFProbeOutput(output)
	if err != nil {
		return nil, output, err
	}

	frameCount, err := strconv.ParseInt(ffprobeCountOutput.Streams[0].FrameCountRead, 10, 64)
	if err != nil {
		return nil, output, err
	}

	videoInfo.FrameCount = frameCount
	return &videoInfo, output, nil
}

func NewVideoProcessor(videoInfo *VideoInfo, options FFmpegOptions) (*VideoProcessor, error) {
	if videoInfo.Width <= 0 || videoInfo.Height <= 0 {
		return nil, fmt.Errorf("invalid video size %dx%d", videoInfo.Width, videoInfo.Height)
	}

	// one byte per pixel, ffmpeg does the luma conversion
	frameSize := videoInfo.Width * videoInfo.Height

	return &VideoProcessor{
		videoInfo: *videoInfo,
		options:   options,
		frameSize: frameSize,
	}, nil
}

func (vp *VideoProcessor) readerArgs() []string {
	args := []string{"-v", "error"}
	if vp.options.HWAccelDecodeFlag != "" {
		args = append(args, "-hwaccel", vp.options.HWAccelDecodeFlag)
	}

	return append(args, "-i", vp.videoInfo.InputPath,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"pipe:1")
}

func (vp *VideoProcessor) writerArgs(outputPath string, outputFrameRate float64, overwrite bool) []string {
	args := []string{"-v", "error"}
	if overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}

	return append(args,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-video_size", fmt.Sprintf("%dx%d", vp.videoInfo.Width, vp.videoInfo.Height),
		"-framerate", fmt.Sprintf("%f", outputFrameRate),
		"-i", "pipe:0",
		"-c:v", vp.options.Encoder,
		"-pix_fmt", "yuv420p",
		outputPath)
}

func (vp *VideoProcessor) StartReading(ctx context.Context) error {
	vp.reader = NewCommandContext(ctx, "ffmpeg", vp.readerArgs()...)

	stdout, err := vp.reader.GetStdout()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}

	vp.stdout = stdout
	return vp.reader.Start()
}

func (vp *VideoProcessor) StartWriting(ctx context.Context, outputPath string, outputFrameRate float64, overwrite bool) error {
	vp.writer = NewCommandContext(ctx, "ffmpeg", vp.writerArgs(outputPath, outputFrameRate, overwrite)...)

	stdin, err := vp.writer.GetStdin()
	if err != nil {
		return fmt.Errorf("creating stdin pipe: %w", err)
	}

	vp.stdin = stdin
	return vp.writer.Start()
}

// ReadFrame returns the next decoded frame, or io.EOF once the stream
// is exhausted. Every call allocates a new frame.
func (vp *VideoProcessor) ReadFrame() (*blockmatch.Frame, error) {
	buf := make([]byte, vp.frameSize)
	_, err := io.ReadFull(vp.stdout, buf)
	if err != nil {
		return nil, err
	}

	return blockmatch.FrameFromBytes(buf, vp.videoInfo.Width, vp.videoInfo.Height)
}

func (vp *VideoProcessor) WriteFrame(frame *blockmatch.Frame) error {
	if vp.stdin == nil {
		return fmt.Errorf("writer is not started")
	}

	_, err := vp.stdin.Write(frame.Pix)
	return err
}

// Output returns what both ffmpeg processes printed so far.
func (vp *VideoProcessor) Output() string {
	var out strings.Builder
	if vp.reader != nil {
		out.WriteString(vp.reader.GetOutput())
	}
	if vp.writer != nil {
		out.WriteString(vp.writer.GetOutput())
	}
	return out.String()
}

func (vp *VideoProcessor) Close() error {
	var errors []error

	if vp.stdin != nil {
		if err := vp.stdin.Close(); err != nil {
			errors = append(errors, fmt.Errorf("closing stdin: %w", err))
		}
	}

	if vp.stdout != nil {
		if err := vp.stdout.Close(); err != nil {
			errors = append(errors, fmt.Errorf("closing stdout: %w", err))
		}
	}

	if vp.reader != nil {
		if err := vp.reader.Wait(); err != nil {
			errors = append(errors, fmt.Errorf("waiting for reader: %w", err))
		}
	}

	if vp.writer != nil {
		if err := vp.writer.Wait(); err != nil {
			errors = append(errors, fmt.Errorf("waiting for writer: %w", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("multiple errors during close: %v", errors)
	}
	return nil
}

// Getters for video properties
func (vp *VideoProcessor) Width() int         { return vp.videoInfo.Width }
func (vp *VideoProcessor) Height() int        { return vp.videoInfo.Height }
func (vp *VideoProcessor) FrameRate() float64 { return vp.videoInfo.FrameRate }
func (vp *VideoProcessor) FrameSize() int     { return vp.frameSize }
