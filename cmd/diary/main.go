// Command diary reads and writes a diary kept in a tsv file.
//
// Usage:
//
//	diary [-config path] [-dir dir] [-server url] [-v] <command> [args]
//
// Commands:
//
//	list                          print all entries
//	get <date>                    print one entry
//	put <date> -title T [-content C | -content-file F]
//	                              add or replace an entry, content is read
//	                              from stdin if not given
//	backups                       list backups, most recent first
//	restore <backup | file>       replace diary with a backup or exported file
//	export <out-file> [-backup name]
//	                              copy diary, compressed based on extension
//	serve [-listen addr]          run http api
//	watch                         print entries changed by other programs
//	config [-save]                print config, -save writes it to config file
//
// Dates are YYYYMMDD, YYYY-MM-DD, today or yesterday.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kjk/diary/apiclient"
	"github.com/kjk/diary/config"
	"github.com/kjk/diary/diary"
	"github.com/kjk/diary/log"
)

var errUsage = errors.New("usage: diary [-config path] [-dir dir] [-server url] [-v] list|get|put|backups|restore|export|serve|watch|config [args]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "diary: %v\n", err)
		os.Exit(1)
	}
}

// app is shared by all commands
type app struct {
	cfg        *config.Config
	configPath string
	serverURL  string
	stdin      io.Reader
	stdout     io.Writer

	store *diary.Store
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) openStore() (*diary.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	opts := &diary.Options{
		BackupLimit: a.cfg.BackupLimit,
	}
	s, err := diary.Open(a.cfg.DiaryPath(), opts)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// backend returns local store or, with -server, a client of a running server
func (a *app) backend() (Backend, error) {
	if a.serverURL != "" {
		return apiclient.New(a.serverURL), nil
	}
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return localBackend{s}, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet("diary", flag.ContinueOnError)
	flags.SetOutput(stdout)
	configPath := flags.String("config", "", "path of config.yaml (default: user config dir)")
	dir := flags.String("dir", "", "directory with diary file, overrides config")
	serverURL := flags.String("server", "", "url of diary server e.g. http://127.0.0.1:8427, default is to use the file directly")
	verbose := flags.Bool("v", false, "verbose logging")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dir != "" {
		cfg.SetDir(*dir)
	}
	log.Verbose = cfg.Verbose || *verbose
	// log messages go to log files, stdout is for command output
	log.Output = io.Discard
	if log.Verbose {
		log.Output = os.Stderr
	}
	err = log.Init(&log.Config{
		Dir:  cfg.LogPath(),
		Keep: 14,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "diary: logging to files disabled: %s\n", err)
	}
	defer log.Close()

	a := &app{
		cfg:        cfg,
		configPath: *configPath,
		serverURL:  *serverURL,
		stdin:      stdin,
		stdout:     stdout,
	}
	cmd, cmdArgs := flags.Arg(0), flags.Args()[1:]
	log.Verbosef("diary %s %v\n", cmd, cmdArgs)
	switch cmd {
	case "list":
		return a.cmdList(ctx, cmdArgs)
	case "get":
		return a.cmdGet(ctx, cmdArgs)
	case "put":
		return a.cmdPut(ctx, cmdArgs)
	case "backups":
		return a.cmdBackups(ctx, cmdArgs)
	case "restore":
		return a.cmdRestore(cmdArgs)
	case "export":
		return a.cmdExport(cmdArgs)
	case "serve":
		return a.cmdServe(ctx, cmdArgs)
	case "watch":
		return a.cmdWatch(ctx, cmdArgs)
	case "config":
		return a.cmdConfig(cmdArgs)
	}
	return fmt.Errorf("unknown command '%s'\n%w", cmd, errUsage)
}
