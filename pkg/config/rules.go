// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

// AnalysisRuleDefinition helps unmarshalling the `analysis_rules` config
// param. Type is "regex" or "keyword".
type AnalysisRuleDefinition struct {
	Name       string   `mapstructure:"name"`
	Type       string   `mapstructure:"type"`
	Priority   int      `mapstructure:"priority"`
	Group      string   `mapstructure:"group"`
	Enabled    bool     `mapstructure:"enabled"`
	Pattern    string   `mapstructure:"pattern"`
	FieldNames []string `mapstructure:"field_names"`
	Keywords   []string `mapstructure:"keywords"`
	Scoring    bool     `mapstructure:"scoring"`
}

// AlertRuleDefinition helps unmarshalling the `alert_rules` config param.
// Type is "threshold" or "keyword".
type AlertRuleDefinition struct {
	Name        string   `mapstructure:"name"`
	Type        string   `mapstructure:"type"`
	Description string   `mapstructure:"description"`
	Field       string   `mapstructure:"field"`
	Threshold   float64  `mapstructure:"threshold"`
	CompareType string   `mapstructure:"compare_type"`
	Keywords    []string `mapstructure:"keywords"`
	MatchAll    bool     `mapstructure:"match_all"`
	Level       string   `mapstructure:"level"`
}

// ChannelDefinition helps unmarshalling the `channels` config param. Type is
// "email" or "webhook".
type ChannelDefinition struct {
	Name     string   `mapstructure:"name"`
	Type     string   `mapstructure:"type"`
	URL      string   `mapstructure:"url"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// GetAnalysisRules returns the declared analysis rules.
func GetAnalysisRules() ([]AnalysisRuleDefinition, error) {
	var rules []AnalysisRuleDefinition
	err := Pipe.UnmarshalKey("analysis_rules", &rules)
	return rules, err
}

// GetAlertRules returns the declared alert rules.
func GetAlertRules() ([]AlertRuleDefinition, error) {
	var rules []AlertRuleDefinition
	err := Pipe.UnmarshalKey("alert_rules", &rules)
	return rules, err
}

// GetChannels returns the declared notification channels.
func GetChannels() ([]ChannelDefinition, error) {
	var channels []ChannelDefinition
	err := Pipe.UnmarshalKey("channels", &channels)
	return channels, err
}
