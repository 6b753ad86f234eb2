package service

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kerhoff/wishlistd/internal/realtime"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

// EventPublisher receives change events once they are committed.
// *realtime.Dispatcher satisfies it.
type EventPublisher interface {
	Publish(roomID string, evt realtime.Event)
}

// Options carries the settings the service needs beyond its repositories.
type Options struct {
	SecretKey  string
	TokenTTL   time.Duration
	BcryptCost int
	Metrics    *Metrics
	// NoticeBuffer bounds the queue of pending owner notifications.
	NoticeBuffer int
}

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the API and the bot.
type Service struct {
	logger    *logrus.Logger
	Users     repository.UserRepository
	Wishlists repository.WishlistRepository
	Items     repository.ItemRepository
	Ledger    repository.LedgerStore

	events   EventPublisher
	validate *validator.Validate
	metrics  *Metrics

	secretKey  []byte
	tokenTTL   time.Duration
	bcryptCost int

	notices       chan ownerNotice
	noticesActive *atomic.Bool
}

// New creates a new Service with all required dependencies. events may be
// nil, in which case committed changes are not broadcast.
func New(logger *logrus.Logger,
	users repository.UserRepository,
	wishlists repository.WishlistRepository,
	items repository.ItemRepository,
	ledger repository.LedgerStore,
	events EventPublisher,
	opts Options,
) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.NoticeBuffer <= 0 {
		opts.NoticeBuffer = 64
	}

	return &Service{
		logger: logger,
		Users:  users, Wishlists: wishlists, Items: items, Ledger: ledger,
		events:        events,
		validate:      newValidator(),
		metrics:       opts.Metrics,
		secretKey:     []byte(opts.SecretKey),
		tokenTTL:      opts.TokenTTL,
		bcryptCost:    opts.BcryptCost,
		notices:       make(chan ownerNotice, opts.NoticeBuffer),
		noticesActive: atomic.NewBool(false),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs the struct validator and wraps its report in ErrValidation.
func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid %s", ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
