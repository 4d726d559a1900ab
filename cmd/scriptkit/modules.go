package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/scriptkit/host"
	"github.com/kbukum/scriptkit/pipeline"
	"github.com/kbukum/scriptkit/tasks"
)

func builtinModules() *host.Registry {
	r := host.NewRegistry()
	r.MustRegister(&host.Module{Name: "hello", Main: hello})
	r.MustRegister(&host.Module{Name: "merge-lines", Default: mergeLines})
	r.MustRegister(&host.Module{Name: "bundle", Default: bundle})
	return r
}

// hello logs a few values and returns while one write is still pending.
func hello(ctx context.Context, rt *host.Runtime, arg string) error {
	rt.Console.Log("Started", arg)
	rt.Console.Log(map[string]any{"hello": "world"})

	tasks.Spawn(ctx, rt.Ledger, func(context.Context) (struct{}, error) {
		time.Sleep(10 * time.Millisecond)
		rt.Console.Log("Finished", []any{1, "two", nil})
		return struct{}{}, nil
	})
	return nil
}

// mergeLines interleaves the non-empty lines of the comma-separated files
// in arg, printing each with its position in the merged stream.
func mergeLines(ctx context.Context, rt *host.Runtime, arg string) error {
	paths := splitList(arg)
	if len(paths) == 0 {
		return fmt.Errorf("merge-lines: no files given")
	}

	sources := make([]*pipeline.Source[string], 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			for _, s := range sources {
				s.Cancel()
			}
			return err
		}
		sources = append(sources, pipeline.IterSource(pipeline.Lines(f)))
	}

	lines := pipeline.Merge(sources...).
		Filter(func(_ context.Context, line string) (bool, error) {
			return strings.TrimSpace(line) != "", nil
		})
	return pipeline.ForEach(ctx, lines, func(_ context.Context, line string, idx int) error {
		rt.Console.Log(idx, line)
		return nil
	})
}

type bundledFile struct {
	name string
	data []byte
}

// bundle concatenates the regular files of the directory in arg, skipping
// dotfiles, and prints each file's size followed by the total.
func bundle(ctx context.Context, rt *host.Runtime, arg string) error {
	dir := arg
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	files := pipeline.Map(
		pipeline.FromSlice(entries).Filter(func(_ context.Context, e os.DirEntry) (bool, error) {
			return e.Type().IsRegular() && !strings.HasPrefix(e.Name(), "."), nil
		}),
		func(_ context.Context, e os.DirEntry) (bundledFile, error) {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			return bundledFile{name: e.Name(), data: data}, err
		},
	).Tap(func(_ context.Context, f bundledFile) error {
		rt.Console.Log(f.name, len(f.data))
		return nil
	})

	total, err := pipeline.Fold(ctx, files, 0, func(_ context.Context, sum int, f bundledFile) (int, error) {
		return sum + len(f.data), nil
	})
	if err != nil {
		return err
	}
	rt.Console.Log("total", total)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
