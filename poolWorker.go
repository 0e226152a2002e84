package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Zelak312/blockmotion/blockmatch"
)

type PoolWorker struct {
	ctx         context.Context
	queue       *Queue
	sqlite      *Sqlite
	config      *Config
	hub         *Hub
	matcher     *blockmatch.Matcher
	workChannel chan Job
	waitGroup   *sync.WaitGroup
	workers     []*Worker
	logger      *logrus.Entry
}

func NewPoolWorker(ctx context.Context, queue *Queue, sqlite *Sqlite, config *Config,
	hub *Hub, matcher *blockmatch.Matcher, waitGroup *sync.WaitGroup) (*PoolWorker, error) {
	logger, err := CreateLogger("pool")
	if err != nil {
		return nil, err
	}

	p := &PoolWorker{
		ctx:         ctx,
		queue:       queue,
		sqlite:      sqlite,
		config:      config,
		hub:         hub,
		matcher:     matcher,
		workChannel: make(chan Job),
		waitGroup:   waitGroup,
		logger:      logger,
	}

	for i := 0; i < config.Workers; i++ {
		workerLogger, err := CreateLogger("worker")
		if err != nil {
			return nil, err
		}

		p.workers = append(p.workers, NewWorker(i, workerLogger.WithField("workerId", i), p))
	}

	return p, nil
}

// RunDispatcher hands queued jobs to idle workers until the context is done.
// Callers waiting on the wait group must count the dispatcher itself.
func (p *PoolWorker) RunDispatcher() {
	for _, worker := range p.workers {
		p.waitGroup.Add(1)
		go worker.start()
	}

	defer close(p.workChannel)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, ok := p.queue.Peek()
		if !ok {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		select {
		case <-p.ctx.Done():
			return
		case p.workChannel <- job:
			p.queue.RemoveByID(job.ID)
			p.logger.WithFields(StructFields(job)).Debug("Dispatched job")
		case <-ticker.C:
			// the head may have been removed while every worker was busy
		}
	}
}

func (p *PoolWorker) GetWorkerInfos() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, worker := range p.workers {
		infos = append(infos, worker.GetInfo())
	}

	return infos
}
