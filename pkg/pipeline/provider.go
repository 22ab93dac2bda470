// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package pipeline assembles the server-side subsystems and wires them
// together: intake, processor, analyzer and alert manager.
package pipeline

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/DataDog/logpipe/pkg/alert"
	"github.com/DataDog/logpipe/pkg/alert/channels"
	"github.com/DataDog/logpipe/pkg/analyzer"
	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/parsers"
	"github.com/DataDog/logpipe/pkg/processor"
	"github.com/DataDog/logpipe/pkg/storage/cache"
	"github.com/DataDog/logpipe/pkg/storage/relational"
	"github.com/DataDog/logpipe/pkg/util/log"
)

// Provider owns the pipeline subsystems and their shared storage clients.
type Provider struct {
	cache     cache.Cache
	store     *relational.Store
	processor *processor.Processor
	analyzer  *analyzer.Analyzer
	alerts    *alert.Manager
}

// NewProvider builds the full pipeline from the global configuration: the
// storage clients, the declared rules and channels, and the
// processor→analyzer→alert manager chain.
func NewProvider() (*Provider, error) {
	cacheStore := newCache(config.GetCacheConfig())
	store, err := relational.Open(config.GetDatabaseConfig())
	if err != nil {
		cacheStore.Close()
		return nil, fmt.Errorf("unable to open the relational store: %w", err)
	}

	p := &Provider{
		cache:    cacheStore,
		store:    store,
		analyzer: analyzer.New(config.GetAnalyzerConfig(), cacheStore, store),
		alerts:   alert.NewManager(config.GetAlertConfig(), cacheStore, store),
	}
	p.processor = processor.New(config.GetProcessorConfig(), cacheStore, store, p.analyzer.SubmitRecord)

	p.processor.AddParser(parsers.NewJSONParser(nil))
	p.processor.AddParser(parsers.NewTextParser(nil))

	p.analyzer.SetAnalysisCallback(func(record *message.LogRecord, result analyzer.Result) {
		p.alerts.CheckAlerts(record, result)
	})

	if err := p.loadAnalysisRules(); err != nil {
		p.closeStorage()
		return nil, err
	}
	if err := p.loadAlertRules(); err != nil {
		p.closeStorage()
		return nil, err
	}
	if err := p.loadChannels(); err != nil {
		p.closeStorage()
		return nil, err
	}
	return p, nil
}

// Start launches the subsystems, consumers first so the intake never feeds a
// stopped stage.
func (p *Provider) Start() error {
	p.alerts.Start()
	p.analyzer.Start()
	if err := p.processor.Start(); err != nil {
		p.analyzer.Stop()
		p.alerts.Stop()
		return err
	}
	log.Infof("Pipeline started, intake on %s", p.processor.Addr())
	return nil
}

// Stop shuts the pipeline down in intake-to-sink order, draining each stage,
// then closes the storage clients.
func (p *Provider) Stop() error {
	p.processor.Stop()
	p.analyzer.Stop()
	p.alerts.Stop()
	return p.closeStorage()
}

// Processor exposes the processor, mainly for the intake address.
func (p *Provider) Processor() *processor.Processor { return p.processor }

// Analyzer exposes the analyzer for metrics snapshots.
func (p *Provider) Analyzer() *analyzer.Analyzer { return p.analyzer }

// Alerts exposes the alert manager.
func (p *Provider) Alerts() *alert.Manager { return p.alerts }

func (p *Provider) closeStorage() error {
	var errs *multierror.Error
	if err := p.store.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing the relational store: %w", err))
	}
	if err := p.cache.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing the cache: %w", err))
	}
	return errs.ErrorOrNil()
}

func newCache(cfg config.CacheConfig) cache.Cache {
	if cfg.InMemory {
		log.Info("Using the in-memory cache store")
		return cache.NewInMemory()
	}
	return cache.NewRedisCache(cfg)
}

// loadAnalysisRules registers the rules declared in the configuration.
func (p *Provider) loadAnalysisRules() error {
	defs, err := config.GetAnalysisRules()
	if err != nil {
		return fmt.Errorf("invalid analysis_rules: %w", err)
	}
	analyzerCfg := config.GetAnalyzerConfig()
	for _, def := range defs {
		ruleCfg := analyzer.RuleConfig{
			Priority:   def.Priority,
			Group:      def.Group,
			Enabled:    def.Enabled,
			MaxRetries: analyzerCfg.MaxRetries,
			Timeout:    analyzerCfg.RuleTimeout,
		}
		switch def.Type {
		case "regex":
			rule, err := analyzer.NewRegexRule(def.Name, def.Pattern, def.FieldNames, ruleCfg)
			if err != nil {
				return err
			}
			p.analyzer.AddRule(rule)
		case "keyword":
			p.analyzer.AddRule(analyzer.NewKeywordRule(def.Name, def.Keywords, def.Scoring, ruleCfg))
		default:
			return fmt.Errorf("unknown analysis rule type %q for rule %s", def.Type, def.Name)
		}
		log.Debugf("Registered analysis rule %s (%s)", def.Name, def.Type)
	}
	return nil
}

// loadAlertRules registers the alert rules declared in the configuration.
func (p *Provider) loadAlertRules() error {
	defs, err := config.GetAlertRules()
	if err != nil {
		return fmt.Errorf("invalid alert_rules: %w", err)
	}
	for _, def := range defs {
		switch def.Type {
		case "threshold":
			rule, err := alert.NewThresholdRule(def.Name, def.Description, def.Field,
				def.Threshold, def.CompareType, def.Level)
			if err != nil {
				return err
			}
			p.alerts.AddRule(rule)
		case "keyword":
			p.alerts.AddRule(alert.NewKeywordRule(def.Name, def.Description,
				def.Field, def.Keywords, def.MatchAll, def.Level))
		default:
			return fmt.Errorf("unknown alert rule type %q for rule %s", def.Type, def.Name)
		}
		log.Debugf("Registered alert rule %s (%s)", def.Name, def.Type)
	}
	return nil
}

// loadChannels registers the notification channels declared in the
// configuration.
func (p *Provider) loadChannels() error {
	defs, err := config.GetChannels()
	if err != nil {
		return fmt.Errorf("invalid channels: %w", err)
	}
	for _, def := range defs {
		switch def.Type {
		case "webhook":
			p.alerts.AddChannel(channels.NewWebhook(def.Name, def.URL, nil, 0))
		case "email":
			p.alerts.AddChannel(channels.NewEmail(def.Name, def.SMTPHost, def.SMTPPort,
				def.Username, def.Password, def.From, def.To))
		default:
			return fmt.Errorf("unknown channel type %q for channel %s", def.Type, def.Name)
		}
		log.Debugf("Registered notification channel %s (%s)", def.Name, def.Type)
	}
	return nil
}
