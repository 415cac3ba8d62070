package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"library-lending/internal/domain"
	"library-lending/internal/logger"
	"library-lending/internal/repository"
)

type peopleService struct {
	ledger repository.Ledger
}

func NewPeopleService(ledger repository.Ledger) PeopleService {
	return &peopleService{ledger: ledger}
}

// validatePerson normalizes and checks the editable fields of a person.
func validatePerson(fullName, email string) (string, string, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return "", "", fmt.Errorf("%w: full name is required", domain.ErrInvalidInput)
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return "", "", fmt.Errorf("%w: invalid email %q", domain.ErrInvalidInput, email)
		}
	}
	return fullName, email, nil
}

// checkEmailFree fails when email belongs to someone other than personID.
func (s *peopleService) checkEmailFree(ctx context.Context, email string, personID int32) error {
	if email == "" {
		return nil
	}
	owner, err := s.ledger.People().GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner.ID != personID {
		return fmt.Errorf("email %s: %w", email, domain.ErrEmailTaken)
	}
	return nil
}

func (s *peopleService) Register(ctx context.Context, fullName, email string) (*domain.Person, error) {
	fullName, email, err := validatePerson(fullName, email)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}

	person := &domain.Person{FullName: fullName, Email: email}
	if err := s.ledger.People().Create(ctx, person); err != nil {
		return nil, fmt.Errorf("failed to create person: %w", err)
	}
	logger.Info("Person registered", "person_id", person.ID)
	return person, nil
}

func (s *peopleService) UpdatePerson(ctx context.Context, personID int32, fullName, email string) (*domain.Person, error) {
	fullName, email, err := validatePerson(fullName, email)
	if err != nil {
		return nil, err
	}
	person, err := s.ledger.People().GetByID(ctx, personID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, email, personID); err != nil {
		return nil, err
	}

	person.FullName = fullName
	person.Email = email
	if err := s.ledger.People().Update(ctx, person); err != nil {
		return nil, fmt.Errorf("failed to update person: %w", err)
	}
	logger.Info("Person updated", "person_id", personID)
	return person, nil
}

func (s *peopleService) GetPerson(ctx context.Context, personID int32) (*domain.Person, error) {
	return s.ledger.People().GetByID(ctx, personID)
}

// DeletePerson removes a person who holds nothing. Their reservations are dropped with them.
func (s *peopleService) DeletePerson(ctx context.Context, personID int32) error {
	logger.EnterMethod("peopleService.DeletePerson", "person_id", personID)

	var cleared int64
	err := s.ledger.WithinTx(ctx, func(tx repository.Ledger) error {
		if _, err := tx.People().GetByID(ctx, personID); err != nil {
			return err
		}
		held, err := tx.Items().ListByHolder(ctx, personID)
		if err != nil {
			return err
		}
		if len(held) > 0 {
			return fmt.Errorf("person %d holds %d items: %w", personID, len(held), domain.ErrPersonHoldsItems)
		}

		cleared, err = tx.Items().ClearReservationsBy(ctx, personID)
		if err != nil {
			return err
		}
		return tx.People().Delete(ctx, personID)
	})
	if err != nil {
		logger.ExitMethodWithError("peopleService.DeletePerson", err)
		return err
	}

	logger.Info("Person deleted", "person_id", personID, "reservations_cleared", cleared)
	logger.ExitMethod("peopleService.DeletePerson")
	return nil
}

func (s *peopleService) Holdings(ctx context.Context, personID int32) (*domain.Holdings, error) {
	if _, err := s.ledger.People().GetByID(ctx, personID); err != nil {
		return nil, err
	}
	held, err := s.ledger.Items().ListByHolder(ctx, personID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.ledger.Items().ListByReserver(ctx, personID)
	if err != nil {
		return nil, err
	}
	return &domain.Holdings{Held: held, Reserved: reserved}, nil
}

func (s *peopleService) History(ctx context.Context, personID int32) ([]domain.BorrowRecord, error) {
	if _, err := s.ledger.People().GetByID(ctx, personID); err != nil {
		return nil, err
	}
	return s.ledger.BorrowRecords().ListByPerson(ctx, personID)
}
