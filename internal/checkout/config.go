package checkout

import (
	"errors"
	"strings"
	"time"

	"github.com/maltedev/dampfi-automation/internal/parser"
)

// Selectors are the cascades used to find interactive controls on the live site.
type Selectors struct {
	LoginIdentifier parser.Cascade `yaml:"login_identifier"`
	LoginSecret     parser.Cascade `yaml:"login_secret"`
	LoginSubmit     parser.Cascade `yaml:"login_submit"`
	VariantControl  parser.Cascade `yaml:"variant_control"`
	Quantity        parser.Cascade `yaml:"quantity"`
	AddToCart       parser.Cascade `yaml:"add_to_cart"`
	PaymentControls parser.Cascade `yaml:"payment_controls"`
	PaymentLabels   string         `yaml:"payment_labels"`
	PlaceOrder      parser.Cascade `yaml:"place_order"`
}

// SettleIntervals bound the waits after each kind of page action.
type SettleIntervals struct {
	AfterNavigate   time.Duration `yaml:"after_navigate"`
	AfterLogin      time.Duration `yaml:"after_login"`
	AfterVariant    time.Duration `yaml:"after_variant"`
	AfterAddToCart  time.Duration `yaml:"after_add_to_cart"`
	AfterCheckout   time.Duration `yaml:"after_checkout"`
	AfterPayment    time.Duration `yaml:"after_payment"`
	AfterPlaceOrder time.Duration `yaml:"after_place_order"`
}

type Config struct {
	BaseURL         string
	LoginPath       string
	CheckoutPath    string
	SessionTimeout  time.Duration
	Selectors       Selectors
	PaymentSynonyms []string
	Settle          SettleIntervals
}

func DefaultSelectors() Selectors {
	return Selectors{
		LoginIdentifier: parser.Cascade{
			`input[name="login[username]"]`,
			`input[type="email"]`,
			`#email`,
		},
		LoginSecret: parser.Cascade{
			`input[name="login[password]"]`,
			`input[type="password"]`,
			`#pass`,
		},
		LoginSubmit: parser.Cascade{
			`button.action.login`,
			`.action.login`,
			`button[type="submit"]`,
		},
		VariantControl: parser.Cascade{
			`select[name*="super_attribute"]`,
			`select[name*="option"]`,
		},
		Quantity: parser.Cascade{
			`input[name="qty"]`,
			`input[type="number"][name*="qty"]`,
		},
		AddToCart: parser.Cascade{
			`#product-addtocart-button`,
			`button.action.tocart`,
			`button[title*="Add to Cart"]`,
			`button[title*="In den Warenkorb"]`,
		},
		PaymentControls: parser.Cascade{
			`input[value*="invoice"]`,
			`input[value*="bill"]`,
			`input[value*="rechnung"]`,
		},
		PaymentLabels: "label",
		PlaceOrder: parser.Cascade{
			`button[title*="Place Order"]`,
			`button[title*="Bestellung aufgeben"]`,
			`.action.primary.checkout`,
			`button.checkout`,
		},
	}
}

func DefaultPaymentSynonyms() []string {
	return []string{"bill", "invoice", "rechnung", "kauf auf rechnung", "facture"}
}

func DefaultSettleIntervals() SettleIntervals {
	return SettleIntervals{
		AfterNavigate:   1 * time.Second,
		AfterLogin:      2 * time.Second,
		AfterVariant:    500 * time.Millisecond,
		AfterAddToCart:  2 * time.Second,
		AfterCheckout:   2 * time.Second,
		AfterPayment:    1 * time.Second,
		AfterPlaceOrder: 5 * time.Second,
	}
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://www.dampfi.ch",
		LoginPath:       "/customer/account/login",
		CheckoutPath:    "/checkout",
		SessionTimeout:  3 * time.Minute,
		Selectors:       DefaultSelectors(),
		PaymentSynonyms: DefaultPaymentSynonyms(),
		Settle:          DefaultSettleIntervals(),
	}
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("checkout base URL is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.New("checkout base URL must be http or https")
	}
	if c.SessionTimeout < 0 {
		return errors.New("checkout session timeout must not be negative")
	}
	if len(c.Selectors.AddToCart) == 0 {
		return errors.New("add to cart cascade must not be empty")
	}
	return nil
}

func (c Config) loginURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.LoginPath
}

func (c Config) checkoutURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.CheckoutPath
}
