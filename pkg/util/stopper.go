// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package util

import "sync"

// Stoppable is anything that can be stopped synchronously.
type Stoppable interface {
	Stop()
}

// SerialStopper stops its components one by one, in the order they were
// added. Use it when the components form a dependency chain.
type SerialStopper struct {
	components []Stoppable
}

// NewSerialStopper returns a stopper for the given components.
func NewSerialStopper(components ...Stoppable) *SerialStopper {
	return &SerialStopper{components: components}
}

// Add appends a component to stop.
func (s *SerialStopper) Add(component Stoppable) {
	s.components = append(s.components, component)
}

// Stop stops every component in order and returns when all are stopped.
func (s *SerialStopper) Stop() {
	for _, component := range s.components {
		component.Stop()
	}
}

// ParallelStopper stops all its components concurrently and waits for all of
// them to finish.
type ParallelStopper struct {
	components []Stoppable
}

// NewParallelStopper returns a stopper for the given components.
func NewParallelStopper(components ...Stoppable) *ParallelStopper {
	return &ParallelStopper{components: components}
}

// Add appends a component to stop.
func (s *ParallelStopper) Add(component Stoppable) {
	s.components = append(s.components, component)
}

// Stop stops every component in parallel and returns when all are stopped.
func (s *ParallelStopper) Stop() {
	var wg sync.WaitGroup
	for _, component := range s.components {
		wg.Add(1)
		go func(c Stoppable) {
			defer wg.Done()
			c.Stop()
		}(component)
	}
	wg.Wait()
}
