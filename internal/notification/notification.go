package notification

import (
	"context"
	"fmt"

	"library-lending/internal/domain"
)

// Sink accepts notifications for asynchronous delivery. Send only enqueues.
type Sink interface {
	Send(ctx context.Context, msg domain.Notification) error
}

// Sender performs the actual delivery over some transport.
type Sender interface {
	Deliver(ctx context.Context, msg domain.Notification) error
}

func OverdueNotice(person *domain.Person, item *domain.Item) domain.Notification {
	return domain.Notification{
		To:      person.Email,
		Subject: "Overdue Book Notification",
		Body:    fmt.Sprintf("Hello, dear %s. You have an overdue book: %s. Please return it.", person.FullName, item.Title),
	}
}

func ItemFreeNotice(person *domain.Person, item *domain.Item) domain.Notification {
	return domain.Notification{
		To:      person.Email,
		Subject: fmt.Sprintf("The book: %s is free", item.Title),
		Body:    fmt.Sprintf("Hello, dear %s. The book '%s', reserved by you, is now free.", person.FullName, item.Title),
	}
}
