package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dentaflow/dentaflow/pkg/email"
	"github.com/dentaflow/dentaflow/pkg/queue"
	"github.com/dentaflow/dentaflow/pkg/referral"
)

// receiptEmailTask is queued after a verified payment activates a
// subscription. The recipient address is resolved at send time so a stale
// queue entry still reaches the owner's current email.
type receiptEmailTask struct {
	OwnerID  uuid.UUID `json:"owner_id"`
	PlanName string    `json:"plan_name"`
	Amount   int64     `json:"amount"`
	Currency string    `json:"currency"`
	EndDate  time.Time `json:"end_date"`
}

func inviteEmailHandler(sender email.EmailSender) queue.TaskHandlerFunc[referral.InviteEmailTask] {
	return func(ctx context.Context, task referral.InviteEmailTask) error {
		return sender.SendEmail(ctx, email.SendEmailParams{
			SendTo:   task.Email,
			Subject:  "You have been invited to DentaFlow",
			BodyHTML: referral.NewInviteEmailBody(task.Code),
			Tag:      "referral-invite",
		})
	}
}

func receiptEmailHandler(db *mongo.Database, sender email.EmailSender, log *slog.Logger) queue.TaskHandlerFunc[receiptEmailTask] {
	users := db.Collection("users")
	return func(ctx context.Context, task receiptEmailTask) error {
		var userDoc struct {
			Email string `bson:"email"`
		}
		err := users.FindOne(ctx, bson.D{{Key: "_id", Value: task.OwnerID.String()}}).Decode(&userDoc)
		if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && userDoc.Email == "") {
			// Nothing to retry against; drop the task.
			log.WarnContext(ctx, "receipt email skipped, owner has no email",
				slog.String("owner_id", task.OwnerID.String()))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load owner record: %w", err)
		}

		return sender.SendEmail(ctx, email.SendEmailParams{
			SendTo:   userDoc.Email,
			Subject:  fmt.Sprintf("Payment received for %s", task.PlanName),
			BodyHTML: receiptEmailBody(task),
			Tag:      "payment-receipt",
		})
	}
}

func receiptEmailBody(task receiptEmailTask) string {
	return fmt.Sprintf(
		`<p>Thank you for subscribing to the <strong>%s</strong>.</p>`+
			`<p>Amount paid: %s %.2f</p>`+
			`<p>Your subscription is active until %s.</p>`,
		task.PlanName,
		task.Currency,
		float64(task.Amount)/100,
		task.EndDate.Format("2 January 2006"),
	)
}
