// Command seekarchive compresses a file into a seekable archive, or
// decompresses one back, exercising the archive package's public API.
package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/arjunbhat/seekarchive"
	"github.com/arjunbhat/seekarchive/ioadapter"
)

func main() {
	var (
		inputFlag, outputFlag, codecFlag string
		minFrameFlag, framesPerSTEFlag   int
		decompressFlag, verboseFlag      bool
	)

	flag.StringVar(&inputFlag, "f", "", "input filename")
	flag.StringVar(&outputFlag, "o", "", "output filename")
	flag.StringVar(&codecFlag, "codec", "zstd", "frame codec to use when compressing: zstd or lz4")
	flag.IntVar(&minFrameFlag, "min-frame", 1<<20, "uncompressed frame size threshold, in bytes")
	flag.IntVar(&framesPerSTEFlag, "frames-per-ste", 10, "number of frames coalesced into one seek-table entry")
	flag.BoolVar(&decompressFlag, "d", false, "decompress instead of compress")
	flag.BoolVar(&verboseFlag, "v", false, "be verbose")
	flag.Parse()

	var err error
	var logger *zap.Logger
	if verboseFlag {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("failed to initialize logger", err)
	}
	defer func() { _ = logger.Sync() }()

	if inputFlag == "" || outputFlag == "" {
		logger.Fatal("both input and output files need to be defined")
	}

	if decompressFlag {
		decompress(logger, inputFlag, outputFlag)
		return
	}
	compress(logger, inputFlag, outputFlag, codecFlag, minFrameFlag, framesPerSTEFlag)
}

func compress(logger *zap.Logger, inputPath, outputPath, codecFlag string, minFrame, framesPerSTE int) {
	input, err := os.Open(inputPath)
	if err != nil {
		logger.Fatal("failed to open input", zap.Error(err))
	}
	defer input.Close()

	output, err := os.OpenFile(outputPath, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		logger.Fatal("failed to open output", zap.Error(err))
	}
	defer output.Close()

	opts := []archive.WOption{
		archive.WithMinFrameSize(minFrame),
		archive.WithFramesPerSTE(framesPerSTE),
		archive.WithWLogger(logger),
	}
	if codecFlag == "lz4" {
		opts = append(opts, archive.WithLZ4(archive.LZ4Params{AutoFlush: true, BlockSize: 64 << 10}))
	}

	w, err := archive.WriterOpen(ioadapter.NewFileWriteSink(output), opts...)
	if err != nil {
		logger.Fatal("failed to open writer", zap.Error(err))
	}

	info, err := input.Stat()
	if err != nil {
		logger.Fatal("failed to stat input", zap.Error(err))
	}
	bar := progressbar.DefaultBytes(info.Size(), "compressing")

	buf := make([]byte, 128<<10)
	for {
		n, rerr := input.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				logger.Fatal("failed to write frame data", zap.Error(werr))
			}
			_ = bar.Add(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			logger.Fatal("failed to read input", zap.Error(rerr))
		}
	}

	if err := w.Close(); err != nil {
		logger.Fatal("failed to close writer", zap.Error(err))
	}
	logger.Info("compression complete", zap.Any("stats", w.Stats()))
}

func decompress(logger *zap.Logger, inputPath, outputPath string) {
	input, err := os.Open(inputPath)
	if err != nil {
		logger.Fatal("failed to open input", zap.Error(err))
	}
	defer input.Close()

	output, err := os.OpenFile(outputPath, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		logger.Fatal("failed to open output", zap.Error(err))
	}
	defer output.Close()

	r, err := archive.ReaderOpen(ioadapter.NewFileReadSource(input), archive.WithCacheCapacity(32), archive.WithRLogger(logger))
	if err != nil {
		logger.Fatal("failed to open reader", zap.Error(err))
	}
	defer r.Close()

	stats := r.Stats()
	bar := progressbar.DefaultBytes(int64(stats.DecompressedSize), "decompressing")

	buf := make([]byte, 128<<10)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := output.Write(buf[:n]); werr != nil {
				logger.Fatal("failed to write output", zap.Error(werr))
			}
			_ = bar.Add(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			logger.Fatal("failed to read frame data", zap.Error(rerr))
		}
	}
	logger.Info("decompression complete", zap.Any("stats", stats))
}
