package config

import (
	"fmt"
	"os"

	"github.com/maltedev/dampfi-automation/internal/checkout"
	"github.com/maltedev/dampfi-automation/internal/parser"
	"gopkg.in/yaml.v3"
)

// Rules is the selector and wording data for the target site. It lives in a YAML file so
// markup or wording changes on the shop do not need a rebuild.
type Rules struct {
	Extraction ExtractionRules `yaml:"extraction"`
	Checkout   CheckoutRules   `yaml:"checkout"`
}

type ExtractionRules struct {
	Selectors parser.Selectors `yaml:"selectors"`
	Phrases   parser.Phrases   `yaml:"phrases"`
}

type CheckoutRules struct {
	Selectors       checkout.Selectors       `yaml:"selectors"`
	PaymentSynonyms []string                 `yaml:"payment_synonyms"`
	Settle          checkout.SettleIntervals `yaml:"settle"`
}

func DefaultExtractionRules() ExtractionRules {
	return ExtractionRules{
		Selectors: parser.DefaultSelectors(),
		Phrases:   parser.DefaultPhrases(),
	}
}

func DefaultCheckoutRules() CheckoutRules {
	return CheckoutRules{
		Selectors:       checkout.DefaultSelectors(),
		PaymentSynonyms: checkout.DefaultPaymentSynonyms(),
		Settle:          checkout.DefaultSettleIntervals(),
	}
}

func DefaultRules() *Rules {
	return &Rules{
		Extraction: DefaultExtractionRules(),
		Checkout:   DefaultCheckoutRules(),
	}
}

// LoadRulesFile reads a rules file over the defaults. Keys missing from the file keep their
// default value; a key that is present replaces the whole default list.
func LoadRulesFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (*Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse selectors file: %w", err)
	}
	return rules, nil
}

// Save writes rules as YAML, e.g. to bootstrap a file from the defaults.
func (r *Rules) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
