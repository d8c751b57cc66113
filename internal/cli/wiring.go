package cli

import (
	"fmt"

	"sync2notion/internal/batch"
	"sync2notion/internal/classify"
	"sync2notion/internal/config"
	"sync2notion/internal/credentials"
	"sync2notion/internal/remote"
)

func openCache(cfg config.Config) (credentials.Store, error) { //nolint:ireturn
	store, err := credentials.Open(cfg.ConfigStore, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open credential cache: %w", err)
	}
	return store, nil
}

func buildClassifier(cfg config.Config) (*classify.Classifier, error) {
	var rules []classify.Rule
	for i, fr := range cfg.FatalRules {
		rule, err := classify.NewRule(fr.Match, fr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("fatal_rules[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return classify.New(rules, classify.PolicyByName(cfg.AmbiguousTransport)), nil
}

func buildOrchestrator(cfg config.Config, cache credentials.Store, recorder batch.Recorder) (*batch.Orchestrator, error) {
	classifier, err := buildClassifier(cfg)
	if err != nil {
		return nil, err
	}
	client := remote.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)
	return batch.New(client, classifier, cache, batch.Options{
		Delay:    cfg.InterJobDelay,
		Recorder: recorder,
	}), nil
}
