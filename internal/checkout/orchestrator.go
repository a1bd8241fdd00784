package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/maltedev/dampfi-automation/internal/browser"
	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/maltedev/dampfi-automation/internal/parser"
	"github.com/shopspring/decimal"
)

// Orchestrator drives one headless browser session per Checkout call. Concurrent calls are
// independent; each owns its own session.
type Orchestrator struct {
	launcher browser.Launcher
	library  *parser.Library
	cfg      Config
	logger   *slog.Logger
}

func NewOrchestrator(launcher browser.Launcher, library *parser.Library, cfg Config, logger *slog.Logger) *Orchestrator {
	if library == nil {
		library = parser.NewDefaultLibrary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	synonyms := make([]string, 0, len(cfg.PaymentSynonyms))
	for _, s := range cfg.PaymentSynonyms {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			synonyms = append(synonyms, s)
		}
	}
	cfg.PaymentSynonyms = synonyms

	return &Orchestrator{
		launcher: launcher,
		library:  library,
		cfg:      cfg,
		logger:   logger.With("component", "checkout"),
	}
}

// Checkout runs the whole purchase flow and never returns an error: every failure is
// encoded in the outcome. The session is closed before Checkout returns.
func (o *Orchestrator) Checkout(ctx context.Context, creds models.Credentials, items []models.LineItem) models.CheckoutOutcome {
	if o.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.SessionTimeout)
		defer cancel()
	}

	r := &run{
		o:       o,
		id:      uuid.NewString(),
		creds:   creds,
		items:   append([]models.LineItem(nil), items...),
		results: make([]models.ItemResult, 0, len(items)),
		state:   StateSessionStart,
	}
	r.logger = o.logger.With("run_id", r.id, "user", creds, "items", len(items))

	return r.execute(ctx)
}

type run struct {
	o       *Orchestrator
	id      string
	creds   models.Credentials
	items   []models.LineItem
	session browser.Session
	logger  *slog.Logger

	state        State
	results      []models.ItemResult
	total        *decimal.Decimal
	confirmation *models.Confirmation
}

func (r *run) execute(ctx context.Context) (outcome models.CheckoutOutcome) {
	defer func() {
		if p := recover(); p != nil {
			outcome = r.fail(ctx, fmt.Errorf("panic: %v", p))
		}
	}()

	steps := []struct {
		state State
		fn    func(context.Context) error
	}{
		{StateSessionStart, r.startSession},
		{StateLoggingIn, r.login},
		{StateAddingItems, r.addItems},
		{StateCheckout, r.openCheckout},
		{StateSelectingPayment, r.selectPayment},
		{StateReadingTotal, r.readTotal},
		{StatePlacingOrder, r.placeOrder},
		{StateReadingConfirmation, r.readConfirmation},
	}

	r.logger.Info("starting checkout")
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, err)
		}
		r.state = step.state
		r.logger.Debug("entering state", "state", r.state)
		if err := step.fn(ctx); err != nil {
			return r.fail(ctx, err)
		}
	}

	r.state = StateCompleted
	if err := r.closeSession(); err != nil {
		r.logger.Warn("failed to close browser session", "error", err)
	}

	outcome = models.NewSucceededOutcome(r.id, r.total, r.confirmation, r.results)
	r.logger.Info("checkout completed",
		"added", outcome.AddedCount(),
		"total", r.total,
		"confirmed", r.confirmation.IsConfirmed())
	return outcome
}

func (r *run) fail(ctx context.Context, err error) models.CheckoutOutcome {
	failedAt := r.state
	r.state = StateFailed

	kind := models.FailureAutomation
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = models.FailureTimeout
	}

	r.logger.Error("checkout failed", "state", failedAt, "kind", kind, "error", err)

	if closeErr := r.closeSession(); closeErr != nil {
		r.logger.Debug("ignoring close error after failure", "error", closeErr)
	}

	return models.NewFailedOutcome(r.id, models.Failure{
		Kind:   kind,
		State:  failedAt.String(),
		Detail: err.Error(),
	}, r.results)
}

func (r *run) closeSession() (err error) {
	if r.session == nil {
		return nil
	}
	session := r.session
	r.session = nil

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while closing session: %v", p)
		}
	}()
	return session.Close()
}

func (r *run) startSession(ctx context.Context) error {
	session, err := r.o.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("failed to launch browser session: %w", err)
	}
	r.session = session
	return nil
}

// login is best-effort: a missing form means the session may already be authenticated.
func (r *run) login(ctx context.Context) error {
	cfg := r.o.cfg
	if !r.creds.IsComplete() {
		r.logger.Warn("credentials incomplete, skipping login")
		return nil
	}

	if err := r.session.Navigate(ctx, cfg.loginURL()); err != nil {
		return err
	}
	if err := r.session.Settle(ctx, cfg.Settle.AfterNavigate); err != nil {
		return err
	}

	identifier, ok, err := r.locate(ctx, cfg.Selectors.LoginIdentifier)
	if err != nil {
		return err
	}
	secret, ok2, err := r.locate(ctx, cfg.Selectors.LoginSecret)
	if err != nil {
		return err
	}
	if !ok || !ok2 {
		r.logger.Info("login form not found, continuing")
		return nil
	}

	if err := r.session.Fill(ctx, identifier, r.creds.LoginIdentifier); err != nil {
		return err
	}
	if err := r.session.Fill(ctx, secret, r.creds.Secret); err != nil {
		return err
	}

	submit, ok, err := r.locate(ctx, cfg.Selectors.LoginSubmit)
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Info("login submit control not found, continuing")
		return nil
	}
	if err := r.session.Click(ctx, submit); err != nil {
		return err
	}
	return r.session.Settle(ctx, cfg.Settle.AfterLogin)
}

func (r *run) addItems(ctx context.Context) error {
	for i, item := range r.items {
		result, err := r.addItem(ctx, item)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if !result.Added {
			r.logger.Warn("item skipped", "index", i, "url", item.ProductURL, "reason", result.SkipReason)
		}
		r.results = append(r.results, result)
	}
	return nil
}

// addItem returns an error only for engine or deadline failures; locator misses are skips.
func (r *run) addItem(ctx context.Context, item models.LineItem) (models.ItemResult, error) {
	cfg := r.o.cfg
	skip := func(reason string) (models.ItemResult, error) {
		return models.ItemResult{Item: item, SkipReason: reason}, nil
	}

	if err := item.Validate(); err != nil {
		return skip(err.Error())
	}

	if err := r.session.Navigate(ctx, item.ProductURL); err != nil {
		return models.ItemResult{}, err
	}
	if err := r.session.Settle(ctx, cfg.Settle.AfterNavigate); err != nil {
		return models.ItemResult{}, err
	}

	if item.HasVariant() {
		control, ok, err := r.locate(ctx, cfg.Selectors.VariantControl)
		if err != nil {
			return models.ItemResult{}, err
		}
		if !ok {
			return skip("variant control not found")
		}
		if err := r.session.SelectOption(ctx, control, *item.VariantValue); err != nil {
			if ctx.Err() != nil {
				return models.ItemResult{}, err
			}
			return skip(fmt.Sprintf("variant %q could not be selected", *item.VariantValue))
		}
		if err := r.session.Settle(ctx, cfg.Settle.AfterVariant); err != nil {
			return models.ItemResult{}, err
		}
	}

	qty, ok, err := r.locate(ctx, cfg.Selectors.Quantity)
	if err != nil {
		return models.ItemResult{}, err
	}
	switch {
	case ok:
		if err := r.session.Fill(ctx, qty, strconv.Itoa(item.Quantity)); err != nil {
			return models.ItemResult{}, err
		}
	case item.Quantity > 1:
		return skip("quantity input not found")
	}

	button, ok, err := r.locate(ctx, cfg.Selectors.AddToCart)
	if err != nil {
		return models.ItemResult{}, err
	}
	if !ok {
		return skip("add to cart control not found")
	}
	if err := r.session.Click(ctx, button); err != nil {
		return models.ItemResult{}, err
	}
	if err := r.session.Settle(ctx, cfg.Settle.AfterAddToCart); err != nil {
		return models.ItemResult{}, err
	}

	return models.ItemResult{Item: item, Added: true}, nil
}

func (r *run) openCheckout(ctx context.Context) error {
	if err := r.session.Navigate(ctx, r.o.cfg.checkoutURL()); err != nil {
		return err
	}
	return r.session.Settle(ctx, r.o.cfg.Settle.AfterCheckout)
}

// selectPayment tries the value-based controls first, then payment labels by synonym.
func (r *run) selectPayment(ctx context.Context) error {
	cfg := r.o.cfg

	control, ok, err := r.locate(ctx, cfg.Selectors.PaymentControls)
	if err != nil {
		return err
	}
	if ok {
		if err := r.session.Click(ctx, control); err != nil {
			return err
		}
		return r.session.Settle(ctx, cfg.Settle.AfterPayment)
	}

	if cfg.Selectors.PaymentLabels == "" || len(cfg.PaymentSynonyms) == 0 {
		r.logger.Info("payment method control not found, continuing")
		return nil
	}

	labels, err := r.session.Texts(ctx, cfg.Selectors.PaymentLabels)
	if err != nil {
		return err
	}
	for i, label := range labels {
		if containsAny(label, cfg.PaymentSynonyms) {
			if err := r.session.ClickNth(ctx, cfg.Selectors.PaymentLabels, i); err != nil {
				return err
			}
			return r.session.Settle(ctx, cfg.Settle.AfterPayment)
		}
	}

	r.logger.Info("payment method control not found, continuing")
	return nil
}

func (r *run) readTotal(ctx context.Context) error {
	doc, err := r.document(ctx)
	if err != nil {
		return err
	}
	r.total = r.o.library.ExtractOrderTotal(doc)
	if r.total == nil {
		r.logger.Warn("order total not found")
	}
	return nil
}

func (r *run) placeOrder(ctx context.Context) error {
	cfg := r.o.cfg

	button, ok, err := r.locate(ctx, cfg.Selectors.PlaceOrder)
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Warn("place order control not found")
		return nil
	}
	if err := r.session.Click(ctx, button); err != nil {
		return err
	}
	return r.session.Settle(ctx, cfg.Settle.AfterPlaceOrder)
}

func (r *run) readConfirmation(ctx context.Context) error {
	doc, err := r.document(ctx)
	if err != nil {
		return err
	}
	r.confirmation = r.o.library.ExtractConfirmation(doc)
	if r.confirmation == nil {
		r.logger.Warn("order confirmation not found")
	}
	return nil
}

func (r *run) document(ctx context.Context) (*goquery.Document, error) {
	html, err := r.session.Content(ctx)
	if err != nil {
		return nil, err
	}
	return parser.ParseDocument(html)
}

// locate returns the first selector of the cascade that matches at least one element.
func (r *run) locate(ctx context.Context, cascade parser.Cascade) (string, bool, error) {
	for _, selector := range cascade {
		count, err := r.session.Count(ctx, selector)
		if err != nil {
			return "", false, err
		}
		if count > 0 {
			return selector, true, nil
		}
	}
	return "", false, nil
}

func containsAny(text string, phrases []string) bool {
	text = strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
