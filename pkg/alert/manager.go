// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package alert

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/metrics"
	"github.com/DataDog/logpipe/pkg/storage/cache"
	"github.com/DataDog/logpipe/pkg/storage/relational"
	"github.com/DataDog/logpipe/pkg/util/log"
)

// Callback is invoked on every alert state transition.
type Callback func(id string, status Status)

// Manager owns the alert rules, the dedup store, the notification queue and
// the delivery workers.
type Manager struct {
	cfg config.AlertConfig
	clk clock.Clock

	rulesMu sync.Mutex
	rules   []Rule

	channelsMu sync.Mutex
	channels   []Channel

	// active holds the non-terminal alerts, keyed by id. Terminal alerts
	// survive in the cache and the relational store only.
	activeMu sync.Mutex
	active   map[string]*Alert

	callbackMu sync.Mutex
	callback   Callback

	cache cache.Cache
	store *relational.Store

	pending chan *Alert
	tasks   chan *Alert
	workers sync.WaitGroup

	running     *atomic.Bool
	stopNotify  chan struct{}
	stopResend  chan struct{}
	notifierOut chan struct{}
	resendOut   chan struct{}
}

// NewManager returns an alert manager. Cache and store may be nil; the
// corresponding persistence is then skipped.
func NewManager(cfg config.AlertConfig, cacheStore cache.Cache, store *relational.Store) *Manager {
	return newManager(cfg, cacheStore, store, clock.New())
}

func newManager(cfg config.AlertConfig, cacheStore cache.Cache, store *relational.Store, clk clock.Clock) *Manager {
	return &Manager{
		cfg:         cfg,
		clk:         clk,
		active:      make(map[string]*Alert),
		cache:       cacheStore,
		store:       store,
		pending:     make(chan *Alert, cfg.MaxQueueSize),
		tasks:       make(chan *Alert),
		running:     atomic.NewBool(false),
		stopNotify:  make(chan struct{}),
		stopResend:  make(chan struct{}),
		notifierOut: make(chan struct{}),
		resendOut:   make(chan struct{}),
	}
}

// AddRule appends an alert rule.
func (m *Manager) AddRule(rule Rule) {
	m.rulesMu.Lock()
	defer m.rulesMu.Unlock()
	m.rules = append(m.rules, rule)
}

// RemoveRule removes the rule with the given name, reporting whether it was
// present.
func (m *Manager) RemoveRule(name string) bool {
	m.rulesMu.Lock()
	defer m.rulesMu.Unlock()
	for i, rule := range m.rules {
		if rule.Name() == name {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return true
		}
	}
	return false
}

// ClearRules removes all rules.
func (m *Manager) ClearRules() {
	m.rulesMu.Lock()
	defer m.rulesMu.Unlock()
	m.rules = nil
}

// AddChannel appends a notification channel.
func (m *Manager) AddChannel(channel Channel) {
	m.channelsMu.Lock()
	defer m.channelsMu.Unlock()
	m.channels = append(m.channels, channel)
}

// RemoveChannel removes the channel with the given name, reporting whether
// it was present.
func (m *Manager) RemoveChannel(name string) bool {
	m.channelsMu.Lock()
	defer m.channelsMu.Unlock()
	for i, channel := range m.channels {
		if channel.Name() == name {
			m.channels = append(m.channels[:i], m.channels[i+1:]...)
			return true
		}
	}
	return false
}

// ClearChannels removes every notification channel.
func (m *Manager) ClearChannels() {
	m.channelsMu.Lock()
	defer m.channelsMu.Unlock()
	m.channels = nil
}

// SetAlertCallback registers the state transition callback.
func (m *Manager) SetAlertCallback(callback Callback) {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	m.callback = callback
}

// Start launches the delivery workers, the notifier and the resend loop.
func (m *Manager) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < m.cfg.ThreadPoolSize; i++ {
		m.workers.Add(1)
		go m.worker()
	}
	go m.notifier()
	go m.resender()
	log.Infof("Alert manager started with %d workers", m.cfg.ThreadPoolSize)
}

// Stop drains the notification queue and joins the workers.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.stopResend <- struct{}{}
	<-m.resendOut
	m.stopNotify <- struct{}{}
	<-m.notifierOut
	close(m.tasks)
	m.workers.Wait()
	log.Info("Alert manager stopped")
}

// CheckAlerts evaluates every rule against a record and its analysis
// results, returning the ids of the alerts raised or refreshed.
func (m *Manager) CheckAlerts(record *message.LogRecord, results map[string]string) []string {
	m.rulesMu.Lock()
	rules := make([]Rule, len(m.rules))
	copy(rules, m.rules)
	m.rulesMu.Unlock()

	var ids []string
	for _, rule := range rules {
		if !rule.Check(record, results) {
			continue
		}
		candidate := rule.GenerateAlert(record, results)
		if candidate == nil {
			continue
		}
		if m.cfg.SuppressDuplicates {
			if id, ok := m.refreshDuplicate(candidate, record); ok {
				ids = append(ids, id)
				continue
			}
		}
		ids = append(ids, m.TriggerAlert(candidate))
	}
	return ids
}

// refreshDuplicate folds candidate into an existing non-terminal alert with
// the same name and labels. It reports whether a duplicate was found.
func (m *Manager) refreshDuplicate(candidate *Alert, record *message.LogRecord) (string, bool) {
	m.activeMu.Lock()
	var found *Alert
	for _, existing := range m.active {
		if existing.Name == candidate.Name && sameLabels(existing.Labels, candidate.Labels) {
			found = existing
			break
		}
	}
	if found == nil {
		m.activeMu.Unlock()
		return "", false
	}
	found.Count++
	found.UpdateTime = message.FormatTimestamp(m.clk.Now())
	if record != nil {
		found.RelatedLogIDs = append(found.RelatedLogIDs, record.ID)
	}
	snapshot := *found
	m.activeMu.Unlock()

	m.persist(&snapshot, snapshot.Status)
	log.Debugf("Alert %s refreshed, count is now %d", snapshot.ID, snapshot.Count)
	return snapshot.ID, true
}

// TriggerAlert registers a new alert, queues its notification and returns
// the assigned id.
func (m *Manager) TriggerAlert(a *Alert) string {
	a.ID = newAlertID()
	if a.Status == "" {
		a.Status = StatusPending
	}
	now := message.FormatTimestamp(m.clk.Now())
	if a.Timestamp == "" {
		a.Timestamp = now
	}
	a.UpdateTime = now
	if a.Count == 0 {
		a.Count = 1
	}

	m.activeMu.Lock()
	m.active[a.ID] = a
	snapshot := *a
	m.activeMu.Unlock()

	metrics.AlertsTriggered.Add(1)
	metrics.TlmAlertsTriggered.Inc()

	m.persist(&snapshot, "")
	m.enqueue(a)
	m.notifyCallback(a.ID, snapshot.Status)
	log.Infof("Alert %s triggered: %s [%s]", a.ID, a.Name, a.Level)
	return a.ID
}

// ResolveAlert marks an alert RESOLVED. It returns false when the alert is
// unknown or already terminal; resolved alerts are never resent.
func (m *Manager) ResolveAlert(id, comment string) bool {
	return m.finish(id, StatusResolved, "resolve_comment", comment)
}

// IgnoreAlert marks an alert IGNORED. It returns false when the alert is
// unknown or already terminal.
func (m *Manager) IgnoreAlert(id, comment string) bool {
	return m.finish(id, StatusIgnored, "ignore_comment", comment)
}

func (m *Manager) finish(id string, status Status, commentKey, comment string) bool {
	m.activeMu.Lock()
	a, ok := m.active[id]
	if !ok {
		m.activeMu.Unlock()
		return false
	}
	prev := a.Status
	a.Status = status
	a.UpdateTime = message.FormatTimestamp(m.clk.Now())
	if comment != "" {
		if a.Annotations == nil {
			a.Annotations = make(map[string]string)
		}
		a.Annotations[commentKey] = comment
	}
	delete(m.active, id)
	snapshot := *a
	m.activeMu.Unlock()

	m.persist(&snapshot, prev)
	m.notifyCallback(id, status)
	log.Infof("Alert %s is now %s", id, status)
	return true
}

// GetAlert returns an alert by id, falling back to the cache for terminal
// alerts.
func (m *Manager) GetAlert(id string) (*Alert, bool) {
	m.activeMu.Lock()
	if a, ok := m.active[id]; ok {
		snapshot := *a
		m.activeMu.Unlock()
		return &snapshot, true
	}
	m.activeMu.Unlock()

	if m.cache == nil {
		return nil, false
	}
	data, ok, err := m.cache.Get(cache.AlertKey(id))
	if err != nil || !ok {
		return nil, false
	}
	a, err := FromJSON(data)
	if err != nil {
		log.Warnf("Corrupt cached alert %s: %v", id, err)
		return nil, false
	}
	return a, true
}

// GetActiveAlerts returns a copy of every non-terminal alert.
func (m *Manager) GetActiveAlerts() []*Alert {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	alerts := make([]*Alert, 0, len(m.active))
	for _, a := range m.active {
		snapshot := *a
		alerts = append(alerts, &snapshot)
	}
	return alerts
}

// GetAlertHistory returns the alerts archived in the relational store within
// [start, end], newest first.
func (m *Manager) GetAlertHistory(start, end string, limit, offset int) ([]*Alert, error) {
	if m.store == nil {
		return nil, nil
	}
	rows, err := m.store.QueryFieldValues("alert_data", start, end, limit, offset)
	if err != nil {
		return nil, err
	}
	alerts := make([]*Alert, 0, len(rows))
	for _, row := range rows {
		a, err := FromJSON([]byte(row))
		if err != nil {
			log.Warnf("Skipping corrupt archived alert: %v", err)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// enqueue queues an alert for delivery, dropping when the queue is full.
func (m *Manager) enqueue(a *Alert) {
	select {
	case m.pending <- a:
	default:
		metrics.NotificationErrors.Add(1)
		metrics.TlmNotificationErrors.Inc()
		log.Warnf("Notification queue full, dropping delivery of alert %s", a.ID)
	}
}

func (m *Manager) notifyCallback(id string, status Status) {
	m.callbackMu.Lock()
	callback := m.callback
	m.callbackMu.Unlock()
	if callback != nil {
		callback(id, status)
	}
}

// notifier lifts up to batchSize queued alerts per tick and schedules them
// on the worker pool.
func (m *Manager) notifier() {
	ticker := m.clk.Ticker(m.cfg.GroupInterval)
	defer func() {
		ticker.Stop()
		close(m.notifierOut)
	}()
	for {
		select {
		case <-ticker.C:
			m.notifyBatch()
		case <-m.stopNotify:
			m.notifyBatch()
			return
		}
	}
}

func (m *Manager) notifyBatch() {
	for i := 0; i < m.cfg.BatchSize; i++ {
		select {
		case a := <-m.pending:
			m.tasks <- a
		default:
			return
		}
	}
}

func (m *Manager) worker() {
	defer m.workers.Done()
	for a := range m.tasks {
		m.deliver(a)
	}
}

// deliver sends one alert through every channel, then promotes it to ACTIVE.
func (m *Manager) deliver(a *Alert) {
	m.channelsMu.Lock()
	channels := make([]Channel, len(m.channels))
	copy(channels, m.channels)
	m.channelsMu.Unlock()

	for _, channel := range channels {
		if err := channel.Send(a); err != nil {
			metrics.NotificationErrors.Add(1)
			metrics.TlmNotificationErrors.Inc()
			log.Warnf("Channel %s failed to deliver alert %s: %v", channel.Name(), a.ID, err)
		}
	}

	m.activeMu.Lock()
	live, ok := m.active[a.ID]
	if !ok || live.Status != StatusPending {
		m.activeMu.Unlock()
		return
	}
	live.Status = StatusActive
	live.UpdateTime = message.FormatTimestamp(m.clk.Now())
	snapshot := *live
	m.activeMu.Unlock()

	m.persist(&snapshot, StatusPending)
	m.notifyCallback(snapshot.ID, StatusActive)
}

// resender periodically requeues ACTIVE alerts that have not been refreshed
// within the resend interval.
func (m *Manager) resender() {
	ticker := m.clk.Ticker(m.cfg.CheckInterval)
	defer func() {
		ticker.Stop()
		close(m.resendOut)
	}()
	for {
		select {
		case <-ticker.C:
			m.resendStale()
		case <-m.stopResend:
			return
		}
	}
}

func (m *Manager) resendStale() {
	now := m.clk.Now()
	m.activeMu.Lock()
	var stale []*Alert
	for _, a := range m.active {
		if a.Status != StatusActive {
			continue
		}
		updated, ok := message.ParseTimestamp(a.UpdateTime)
		if !ok {
			continue
		}
		if now.Sub(updated) >= m.cfg.ResendInterval {
			a.UpdateTime = message.FormatTimestamp(now)
			snapshot := *a
			stale = append(stale, &snapshot)
		}
	}
	m.activeMu.Unlock()

	for _, a := range stale {
		m.persist(a, a.Status)
		m.enqueue(a)
		log.Debugf("Alert %s requeued for resend", a.ID)
	}
}

// persist writes an alert snapshot to the cache and the relational store.
// Failures are logged, never surfaced.
func (m *Manager) persist(a *Alert, prev Status) {
	if m.cache != nil {
		if data, err := a.JSON(); err == nil {
			if err := m.cache.Set(cache.AlertKey(a.ID), data, cache.AlertTTL); err != nil {
				log.Warnf("Unable to cache alert %s: %v", a.ID, err)
			}
		}
		if prev != "" && prev != a.Status {
			if err := m.cache.SRem(cache.AlertStatusSetKey(string(prev)), a.ID); err != nil {
				log.Warnf("Unable to update status set for alert %s: %v", a.ID, err)
			}
		}
		if err := m.cache.SAdd(cache.AlertStatusSetKey(string(a.Status)), a.ID); err != nil {
			log.Warnf("Unable to update status set for alert %s: %v", a.ID, err)
		}
		switch a.Status {
		case StatusPending, StatusActive:
			if err := m.cache.SAdd(cache.ActiveAlertsKey, a.ID); err != nil {
				log.Warnf("Unable to track active alert %s: %v", a.ID, err)
			}
		default:
			if err := m.cache.SRem(cache.ActiveAlertsKey, a.ID); err != nil {
				log.Warnf("Unable to untrack alert %s: %v", a.ID, err)
			}
		}
	}
	if m.store != nil {
		data, err := a.JSON()
		if err != nil {
			return
		}
		row := &message.LogRecord{
			ID:        a.ID,
			Timestamp: a.Timestamp,
			Level:     a.Level,
			Source:    a.Source,
			Message:   a.Description,
			Fields: map[string]string{
				"alert_data":   string(data),
				"alert_status": string(a.Status),
				"alert_name":   a.Name,
			},
		}
		if err := m.store.InsertRecord(row); err != nil {
			log.Warnf("Unable to archive alert %s: %v", a.ID, err)
		}
	}
}

// waitIdle blocks until the notification queue and pool are quiet. Test
// helper.
func (m *Manager) waitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(m.pending) == 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
