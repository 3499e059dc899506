// Package form drives the survey entry flow: category selection, answer
// collection, validation and submission to the response store.
package form

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/mbolis/merchant-survey/catalog"
	"github.com/mbolis/merchant-survey/geo"
	"github.com/mbolis/merchant-survey/log"
	"github.com/mbolis/merchant-survey/model"
)

var (
	ErrMerchantRequired = errors.New("merchant name is required")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrInvalidOption    = errors.New("answer is not one of the question's options")
	ErrNoCategory       = errors.New("no category selected")
)

// ValidationError reports every problem found in a submission.
type ValidationError struct {
	errs *multierror.Error
}

func (e ValidationError) Error() string {
	return e.errs.Error()
}

func (e ValidationError) Unwrap() error {
	return e.errs
}

// Messages returns one line per validation problem.
func (e ValidationError) Messages() []string {
	msgs := make([]string, len(e.errs.Errors))
	for i, err := range e.errs.Errors {
		msgs[i] = err.Error()
	}
	return msgs
}

// Creator is the write side of the response store.
type Creator interface {
	Create(ctx context.Context, r model.SurveyResponse) (int64, error)
}

type Controller struct {
	catalog  *catalog.Catalog
	store    Creator
	geocoder geo.Geocoder
}

func NewController(c *catalog.Catalog, store Creator, geocoder geo.Geocoder) *Controller {
	if geocoder == nil {
		geocoder = geo.Noop{}
	}
	return &Controller{catalog: c, store: store, geocoder: geocoder}
}

func (c *Controller) Catalog() *catalog.Catalog {
	return c.catalog
}

// Select makes category the session's current category. Answers are reset
// to each question's first option, unless the category was already selected.
func (c *Controller) Select(s *Session, category string) error {
	cat, ok := c.catalog.Category(category)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.category == cat.Name && s.state != StateConfirmed {
		return nil
	}
	s.category = cat.Name
	s.answers = defaultAnswers(cat)
	s.state = StateSelecting
	s.messages = nil
	return nil
}

// Answer records option as the answer to question in the current category.
func (c *Controller) Answer(s *Session, question, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, ok := c.catalog.Category(s.category)
	if !ok {
		return ErrNoCategory
	}
	q, ok := cat.Question(question)
	if !ok {
		return fmt.Errorf("%w: unknown question %q", ErrInvalidOption, question)
	}
	if !q.HasOption(option) {
		return fmt.Errorf("%w: %q for %q", ErrInvalidOption, option, question)
	}
	s.answers.Set(question, option)
	return nil
}

func (c *Controller) SetMerchantName(s *Session, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchantName = name
}

// SetLocation stores the device location in the session. The address is
// resolved best-effort: a geocoding failure leaves it empty.
func (c *Controller) SetLocation(ctx context.Context, s *Session, lat, lng float64) (geo.Location, error) {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return geo.Location{}, err
	}

	loc := geo.Location{Latitude: lat, Longitude: lng}
	addr, err := c.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		log.WithError(err).Warn("geo.reverse")
	} else {
		loc.Address = addr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = &loc
	return loc, nil
}

func (c *Controller) ClearLocation(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = nil
}

// Submit validates the session and stores it as a new response.
//
// A ValidationError leaves the session in StateInvalid with its answers
// untouched. A storage error leaves it in StateFailed, ready for retry.
// On success the session moves to StateConfirmed and its location is cleared.
func (c *Controller) Submit(ctx context.Context, s *Session) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := c.validate(s)
	if err != nil {
		s.state = StateInvalid
		s.messages = messagesOf(err)
		return 0, err
	}

	id, err := c.store.Create(ctx, r)
	if err != nil {
		s.state = StateFailed
		s.messages = []string{"The response could not be saved, please try again."}
		return 0, err
	}

	s.state = StateConfirmed
	s.messages = nil
	s.lastID = id
	s.confirmed = r
	s.confirmed.ID = id
	s.location = nil
	return id, nil
}

// validate builds the response to store from the session. Caller holds s.mu.
func (c *Controller) validate(s *Session) (model.SurveyResponse, error) {
	var result *multierror.Error

	merchant := model.NormalizeText(s.merchantName)
	if merchant == "" {
		result = multierror.Append(result, ErrMerchantRequired)
	}

	cat, ok := c.catalog.Category(s.category)
	if !ok {
		if s.category == "" {
			result = multierror.Append(result, ErrNoCategory)
		} else {
			result = multierror.Append(result, fmt.Errorf("%w: %q", ErrUnknownCategory, s.category))
		}
	} else {
		for _, q := range cat.Questions {
			a, _ := s.answers.Get(q.Text)
			if !q.HasOption(a) {
				result = multierror.Append(result, fmt.Errorf("%w: %q for %q", ErrInvalidOption, a, q.Text))
			}
		}
	}

	if s.location != nil {
		if err := geo.ValidateCoordinates(s.location.Latitude, s.location.Longitude); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if result.ErrorOrNil() != nil {
		return model.SurveyResponse{}, ValidationError{result}
	}

	r := model.SurveyResponse{
		Category:     cat.Name,
		MerchantName: merchant,
		Answers:      make(model.Answers, 0, len(cat.Questions)),
	}
	for _, q := range cat.Questions {
		a, _ := s.answers.Get(q.Text)
		r.Answers = append(r.Answers, model.Answer{Question: q.Text, Answer: a})
	}
	if s.location != nil {
		r.Latitude = geo.FormatCoordinate(s.location.Latitude)
		r.Longitude = geo.FormatCoordinate(s.location.Longitude)
		r.LocationAddress = s.location.Address
	}
	return r, nil
}

func defaultAnswers(cat model.Category) model.Answers {
	answers := make(model.Answers, 0, len(cat.Questions))
	for _, q := range cat.Questions {
		answers = append(answers, model.Answer{Question: q.Text, Answer: q.Options[0]})
	}
	return answers
}

func messagesOf(err error) []string {
	var verr ValidationError
	if errors.As(err, &verr) {
		return verr.Messages()
	}
	return []string{err.Error()}
}
