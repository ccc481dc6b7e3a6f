package util

import (
	"sync"

	"github.com/automaton-io/automaton/logger"
	"go.uber.org/zap"
)

type Task any

// Worker consumes tasks from a channel and runs them through a handler.
// Several workers may share one channel to form a pool.
type Worker struct {
	name     string
	stop     chan struct{}
	wg       *sync.WaitGroup
	handler  func(Task) error
	taskChan chan Task
}

func NewWorker(name string, wg *sync.WaitGroup, taskChan chan Task, handler func(Task) error) *Worker {
	return &Worker{
		taskChan: taskChan,
		name:     name,
		wg:       wg,
		stop:     make(chan struct{}),
		handler:  handler,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case task := <-w.taskChan:
				err := w.handler(task)
				if err != nil {
					logger.Error("error in executing task in worker", zap.String("worker", w.name), zap.Error(err))
				}
			case <-w.stop:
				logger.Info("stopping worker", zap.String("worker", w.name))
				return
			}
		}
	}()
}

func (w *Worker) Stop() {
	w.stop <- struct{}{}
}
