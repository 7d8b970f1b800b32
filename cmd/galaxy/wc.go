package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aschepis/backscratcher/galaxy/config"
	"github.com/aschepis/backscratcher/galaxy/files"
)

type lineCount struct {
	Path  string
	Lines int
	Dir   bool
}

func (a *app) runWordCount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("wc", flag.ContinueOnError)
	var (
		concurrency = fs.Int("concurrency", 4, "Files counted at once (1 counts sequentially)")
		dirsFirst   = fs.Bool("dirs-first", false, "List directories before files")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	less := files.ByName
	if *dirsFirst {
		less = files.DirsFirst
	}

	counts, err := files.MapFolder(ctx, countLines, dir, files.MapOptions{
		Concurrency: *concurrency,
		Less:        less,
		Mode:        config.DispatchOptions(a.cfg).Mode,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to count lines in %s: %w", dir, err)
	}

	total := 0
	for _, c := range counts {
		if c.Dir {
			fmt.Printf("%8s %s\n", "dir", c.Path)
			continue
		}
		total += c.Lines
		fmt.Printf("%8d %s\n", c.Lines, c.Path)
	}
	fmt.Printf("%8d total\n", total)
	return nil
}

func countLines(ctx context.Context, path string) (lineCount, error) {
	info, err := os.Stat(path)
	if err != nil {
		return lineCount{}, err
	}
	if info.IsDir() {
		return lineCount{Path: path, Dir: true}, nil
	}

	f, err := os.Open(path) //#nosec 304 -- listing entry
	if err != nil {
		return lineCount{}, err
	}
	defer f.Close() //nolint:errcheck // read-only

	n, err := countNewlines(f)
	if err != nil {
		return lineCount{}, err
	}
	return lineCount{Path: path, Lines: n}, nil
}

func countNewlines(r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	buf := make([]byte, 32*1024)
	n := 0
	for {
		read, err := br.Read(buf)
		n += bytes.Count(buf[:read], []byte{'\n'})
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}
