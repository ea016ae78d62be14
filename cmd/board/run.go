package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/board"
	"github.com/BuzzLyutic/taskboard/internal/shell"
	"github.com/BuzzLyutic/taskboard/internal/tui"
	"github.com/BuzzLyutic/taskboard/internal/worker"
)

func runBoard(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c := newClient(logger)
	pool := worker.NewPool(logger, opts.workers, opts.queue)
	b := board.New(c, pool, logger)
	app := shell.New(c, opts.siteURL, opts.path, logger)

	p := tea.NewProgram(tui.New(app, b), tea.WithAltScreen())
	pool.OnResult(func(r worker.Result) {
		if r.Err != nil {
			p.Send(tui.WriteFailedMsg{Result: r})
		}
	})
	pool.Start(ctx)
	defer pool.Stop()
	refresh := func() { p.Send(tui.RefreshMsg{}) }
	b.OnChange(refresh)

	// the board only loads once somebody is signed in
	var startOnce sync.Once
	var boardDone sync.WaitGroup
	startBoard := func() {
		if app.Page() != shell.PageBoard {
			return
		}
		startOnce.Do(func() {
			boardDone.Add(1)
			go func() {
				defer boardDone.Done()
				b.Run(ctx)
			}()
		})
	}
	if err := app.Start(ctx); err != nil {
		logger.Warn("starting without a session", zap.Error(err))
	}
	defer app.Stop()
	// Send blocks until the program runs, so hook up after the synchronous start
	app.OnChange(func() {
		startBoard()
		refresh()
	})
	startBoard()

	_, err = p.Run()
	cancel()
	boardDone.Wait()
	return err
}
