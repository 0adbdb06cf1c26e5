package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/downloader"
)

// Executor is a prepared run: app.Run satisfies it.
type Executor interface {
	Execute(ctx context.Context, events chan<- downloader.Event) *domain.RunSummary
}

// Run drives exec under a bubbletea program until the run finishes. Ctrl+C
// cancels the run; the program exits once every job has stopped.
func Run(ctx context.Context, exec Executor, playlist, folder string, total int) (*domain.RunSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(playlist, folder, total, cancel))

	events := make(chan downloader.Event, constants.EventBufferSize)

	var sum *domain.RunSummary
	go func() {
		sum = exec.Execute(ctx, events)
		close(events)
	}()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for ev := range events {
			p.Send(EventMsg(ev))
		}
		p.Send(DoneMsg{Summary: sum})
	}()

	_, err := p.Run()
	if err != nil {
		cancel()
	}

	<-finished
	return sum, err
}
