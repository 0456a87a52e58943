package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/kjk/diary/api"
	"github.com/kjk/diary/diary"
	"github.com/kjk/diary/export"
	"github.com/kjk/diary/log"
	"github.com/kjk/diary/u"
	"github.com/kjk/diary/watch"
)

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	return fs
}

func needArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: diary %s", usage)
	}
	return nil
}

// one line per entry, title and content shortened
func (a *app) printEntryLine(e *diary.Entry) {
	content := strings.ReplaceAll(e.Content, "\n", " ")
	if utf8.RuneCountInString(content) > 60 {
		content = string([]rune(content)[:60]) + "..."
	}
	a.printf("%s  %s  %s\n", e.Date, e.Title, content)
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	if err := needArgs(args, 0, "list"); err != nil {
		return err
	}
	b, err := a.backend()
	if err != nil {
		return err
	}
	c, err := b.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, e := range c.Sorted() {
		a.printEntryLine(e)
	}
	return nil
}

func (a *app) cmdGet(ctx context.Context, args []string) error {
	if err := needArgs(args, 1, "get <date>"); err != nil {
		return err
	}
	date, err := diary.ParseDate(args[0], time.Now())
	if err != nil {
		return err
	}
	b, err := a.backend()
	if err != nil {
		return err
	}
	e, err := b.GetOne(ctx, date)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("no entry for %s", date)
	}
	a.printf("date: %s\ntitle: %s\n\n%s\n", e.Date, e.Title, e.Content)
	return nil
}

// flags must come after the date: put <date> -title T
func (a *app) cmdPut(ctx context.Context, args []string) error {
	const usage = "put <date> -title T [-content C | -content-file F]"
	if len(args) == 0 {
		return fmt.Errorf("usage: diary %s", usage)
	}
	date, err := diary.ParseDate(args[0], time.Now())
	if err != nil {
		return err
	}
	fs := a.newFlagSet("put")
	title := fs.String("title", "", "title of the entry")
	content := fs.String("content", "", "content of the entry")
	contentFile := fs.String("content-file", "", "read content from a file")
	if err = fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("usage: diary %s", usage)
	}
	isSet := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		isSet[f.Name] = true
	})
	if isSet["content"] && isSet["content-file"] {
		return errors.New("use only one of -content and -content-file")
	}
	e := &diary.Entry{
		Date:    date,
		Title:   *title,
		Content: *content,
	}
	switch {
	case isSet["content-file"]:
		d, err := os.ReadFile(*contentFile)
		if err != nil {
			return err
		}
		e.Content = string(d)
	case !isSet["content"]:
		if f, ok := a.stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			fmt.Fprintf(os.Stderr, "type content of %s, end with ctrl-d:\n", date)
		}
		d, err := io.ReadAll(a.stdin)
		if err != nil {
			return err
		}
		e.Content = string(d)
	}

	b, err := a.backend()
	if err != nil {
		return err
	}
	res := b.Upsert(ctx, e)
	if !res.Success {
		return errors.New(res.Error)
	}
	a.printf("saved %s\n", date)
	return nil
}

func (a *app) cmdBackups(ctx context.Context, args []string) error {
	if err := needArgs(args, 0, "backups"); err != nil {
		return err
	}
	b, err := a.backend()
	if err != nil {
		return err
	}
	backups, err := b.Backups(ctx)
	if err != nil {
		return err
	}
	for _, bak := range backups {
		a.printf("%s  %10s  %s\n", bak.ModTime.Local().Format("2006-01-02 15:04:05"), u.FormatSize(bak.Size), bak.Name)
	}
	return nil
}

// restore accepts a backup name (as printed by backups) or a path of
// a diary file, possibly compressed by export
func (a *app) cmdRestore(args []string) error {
	if err := needArgs(args, 1, "restore <backup | file>"); err != nil {
		return err
	}
	s, err := a.openStore()
	if err != nil {
		return err
	}
	name := args[0]
	var res diary.Result
	if name == filepath.Base(name) && u.FileExists(filepath.Join(s.Dir(), name)) {
		res = s.Restore(name)
	} else {
		d, err := export.ReadMaybeCompressed(name)
		if err != nil {
			return err
		}
		res = s.RestoreData(d, name)
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	a.printf("restored %s from %s\n", s.Path, name)
	return nil
}

func (a *app) cmdExport(args []string) error {
	const usage = "export <out-file> [-backup name]"
	if len(args) == 0 {
		return fmt.Errorf("usage: diary %s", usage)
	}
	fs := a.newFlagSet("export")
	backup := fs.String("backup", "", "export a backup instead of the diary")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("usage: diary %s", usage)
	}
	s, err := a.openStore()
	if err != nil {
		return err
	}
	src := s.Path
	if *backup != "" {
		src = filepath.Join(s.Dir(), filepath.Base(*backup))
	}
	stats, err := export.File(args[0], src)
	if err != nil {
		return err
	}
	a.printf("exported %d entries to %s, %s => %s\n", stats.Entries, stats.OutPath, u.FormatSize(int64(stats.Size)), u.FormatSize(int64(stats.SizeOnDisk)))
	return nil
}

func (a *app) startWatcher(ctx context.Context, s *diary.Store, onChange func(dates []string)) (*watch.Watcher, error) {
	w, err := watch.New(s.Path, s.Load, onChange)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			log.Errorf("watch: %s\n", err)
		}
	}()
	return w, nil
}

func (a *app) cmdServe(ctx context.Context, args []string) error {
	fs := a.newFlagSet("serve")
	listen := fs.String("listen", a.cfg.Listen, "address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.openStore()
	if err != nil {
		return err
	}
	// our own saves show up as changes too
	w, err := a.startWatcher(ctx, s, func(dates []string) {
		log.Logf("diary: changed %s\n", strings.Join(dates, ", "))
	})
	if err != nil {
		log.Errorf("diary: watching %s failed with '%s'\n", s.Path, err)
	} else {
		defer func() {
			log.IfErrf(w.Close(), "diary: closing watcher of %s failed\n", w.Path)
		}()
	}
	a.printf("serving %s on http://%s\n", s.Path, *listen)
	return api.Run(ctx, *listen, api.NewRouter(s))
}

func (a *app) cmdWatch(ctx context.Context, args []string) error {
	if err := needArgs(args, 0, "watch"); err != nil {
		return err
	}
	s, err := a.openStore()
	if err != nil {
		return err
	}
	w, err := a.startWatcher(ctx, s, func(dates []string) {
		c := s.Load()
		for _, date := range dates {
			if e := c[date]; e != nil {
				a.printEntryLine(e)
			}
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		log.IfErrf(w.Close())
	}()
	a.printf("watching %s, ctrl-c to stop\n", s.Path)
	<-ctx.Done()
	return nil
}

func (a *app) cmdConfig(args []string) error {
	fs := a.newFlagSet("config")
	save := fs.Bool("save", false, "write config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := yaml.Marshal(a.cfg)
	if err != nil {
		return err
	}
	a.printf("%s", d)
	if *save {
		if err = a.cfg.Save(a.configPath); err != nil {
			return err
		}
		a.printf("saved config\n")
	}
	return nil
}
