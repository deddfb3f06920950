package feedback

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/notekiln/forge/core"
	"github.com/notekiln/forge/finetune"
)

// Notifier sends a best-effort email when a finetuning pool crosses its
// major threshold, so a maintainer can kick off the actual training run.
// A send failure is logged, never returned to the caller that triggered
// the batch — notification is a courtesy, not part of the pool's
// correctness.
type Notifier struct {
	client *mail.Client
	from   string
	to     []string
	logger core.Logger
}

// NotifierConfig names the SMTP endpoint and recipients for batch
// notifications.
type NotifierConfig struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
	To       []string
}

// NewNotifier builds a Notifier, or returns an error if the SMTP client
// cannot be constructed (e.g. an unresolvable host).
func NewNotifier(cfg NotifierConfig, logger core.Logger) (*Notifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("feedback: building mail client: %w", err)
	}

	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("forge/feedback")
	}

	return &Notifier{client: client, from: cfg.From, to: cfg.To, logger: logger}, nil
}

// NotifyMaintainer sends a summary of a major training batch. Intended to
// be wired as finetune.Pool.OnMajorBatch at the composition root, keeping
// the finetuning pool itself unaware that email exists.
func (n *Notifier) NotifyMaintainer(batch finetune.TrainingBatch) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		n.logger.Error("notifier: invalid from address", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := msg.To(n.to...); err != nil {
		n.logger.Error("notifier: invalid recipient", map[string]interface{}{"error": err.Error()})
		return
	}

	msg.Subject(fmt.Sprintf("Major training batch ready: %s", batch.ArtifactType))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Batch %s for artifact type %q is ready for training.\n\n"+
			"Examples: %d (including %d hard negatives)\n"+
			"Curriculum stage: %s\n"+
			"Average reward: %.2f\n"+
			"Learning rate: %g, batch size: %d, epochs: %d\n",
		batch.BatchID, batch.ArtifactType, len(batch.Examples), batch.HardNegatives,
		batch.CurriculumStage, batch.AvgReward,
		batch.Hyperparameters.LearningRate, batch.Hyperparameters.BatchSize, batch.Hyperparameters.NumEpochs,
	))

	if err := n.client.DialAndSendWithContext(context.Background(), msg); err != nil {
		n.logger.Error("notifier: failed to send batch notification", map[string]interface{}{
			"batch_id": batch.BatchID,
			"error":    err.Error(),
		})
	}
}
