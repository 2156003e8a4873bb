package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/emailmax/warmup/internal/enum"
	warmuperrors "github.com/emailmax/warmup/internal/errors"
	"github.com/emailmax/warmup/internal/models"
	"github.com/emailmax/warmup/internal/tracing"
	"github.com/emailmax/warmup/internal/utils"
)

// htmlPolicy keeps rendered template HTML down to user-generated-content
// safe markup before it goes out on the wire.
var htmlPolicy = bluemonday.UGCPolicy()

type sendPair struct {
	sender   *models.MailboxAccount
	receiver *models.MailboxAccount
}

// PerformCrossSend runs one warmup batch over the cross product of senders
// and receivers. Validation failures are synchronous and happen before any
// network activity; per-pair send failures are recorded on the interaction
// and never abort the remaining pairs.
func (s *Service) PerformCrossSend(ctx context.Context, senderIDs, receiverIDs []string, templateName string,
	variables map[string]string, config *models.CrossSendConfig) (*models.CrossSendResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "InteractionOrchestrator.PerformCrossSend")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if config == nil {
		config = &models.CrossSendConfig{}
	}
	if config.SendingStrategy == "" {
		config.SendingStrategy = enum.SendingSequential
	}

	senders := s.filterRegistered(senderIDs)
	if len(senders) == 0 {
		tracing.TraceErr(span, warmuperrors.ErrNoValidSenders)
		return nil, warmuperrors.ErrNoValidSenders
	}
	receivers := s.filterRegistered(receiverIDs)
	if len(receivers) == 0 {
		tracing.TraceErr(span, warmuperrors.ErrNoValidReceivers)
		return nil, warmuperrors.ErrNoValidReceivers
	}

	template, ok := s.GetTemplate(templateName)
	if !ok {
		tracing.TraceErr(span, warmuperrors.ErrTemplateNotFound)
		return nil, warmuperrors.ErrTemplateNotFound
	}

	pairs := make([]sendPair, 0, len(senders)*len(receivers))
	for _, sender := range senders {
		for _, receiver := range receivers {
			pairs = append(pairs, sendPair{sender: sender, receiver: receiver})
		}
	}
	span.LogFields(
		tracingLog.Int("pairs", len(pairs)),
		tracingLog.String("strategy", config.SendingStrategy.String()),
	)

	result := &models.CrossSendResult{
		TotalInteractions: len(pairs),
		Interactions:      make([]*models.Interaction, 0, len(pairs)),
	}
	var resultMu sync.Mutex

	record := func(interaction *models.Interaction) {
		resultMu.Lock()
		defer resultMu.Unlock()
		result.Interactions = append(result.Interactions, interaction)
		if interaction.Succeeded() {
			result.SuccessfulSends++
		} else {
			result.FailedSends++
		}
	}

	switch config.SendingStrategy {
	case enum.SendingParallel:
		s.sendParallel(ctx, pairs, template, variables, config, record)
	case enum.SendingRandomInterval:
		s.sendPaced(ctx, pairs, template, variables, config, record, func() time.Duration {
			return s.randomDuration(s.intervalBounds(config))
		})
	default:
		s.sendPaced(ctx, pairs, template, variables, config, record, func() time.Duration {
			return durationOr(config.TimeBetweenSends, s.config.TimeBetweenSends)
		})
	}

	s.log.Infof("cross-send finished: %d total, %d sent, %d failed",
		result.TotalInteractions, result.SuccessfulSends, result.FailedSends)
	return result, nil
}

// sendPaced processes pairs strictly in order, waiting for each pair to
// settle before pausing and moving to the next. Used by the sequential and
// random interval strategies, which differ only in how the pause is chosen.
func (s *Service) sendPaced(ctx context.Context, pairs []sendPair, template *models.EmailTemplate,
	variables map[string]string, config *models.CrossSendConfig, record func(*models.Interaction), pause func() time.Duration) {
	for i, pair := range pairs {
		record(s.sendOne(ctx, pair, template, variables, config))
		if i == len(pairs)-1 {
			break
		}
		select {
		case <-time.After(pause()):
		case <-ctx.Done():
			for _, remaining := range pairs[i+1:] {
				record(s.failUnsent(ctx, remaining, template, variables, config, ctx.Err()))
			}
			return
		}
	}
}

// sendParallel forfeits inter-pair ordering and caps in-flight pairs.
func (s *Service) sendParallel(ctx context.Context, pairs []sendPair, template *models.EmailTemplate,
	variables map[string]string, config *models.CrossSendConfig, record func(*models.Interaction)) {
	maxParallel := config.MaxParallel
	if maxParallel <= 0 {
		maxParallel = s.config.MaxParallel
	}
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for _, pair := range pairs {
		wg.Add(1)
		sem <- struct{}{}
		go func(pair sendPair) {
			defer wg.Done()
			defer func() { <-sem }()
			record(s.sendOne(ctx, pair, template, variables, config))
		}(pair)
	}
	wg.Wait()
}

// sendOne runs the full lifecycle for one pair: render, register the
// interaction, hand it to the dispatch queue and wait for it to settle.
func (s *Service) sendOne(ctx context.Context, pair sendPair, template *models.EmailTemplate,
	variables map[string]string, config *models.CrossSendConfig) *models.Interaction {
	interaction, message := s.buildInteraction(pair, template, variables, config)

	s.mu.Lock()
	s.interactions[interaction.ID] = interaction
	s.mu.Unlock()

	item := &models.QueueItem{
		AccountID:     pair.sender.ID,
		InteractionID: interaction.ID,
		Message:       message,
	}
	s.transition(ctx, interaction, enum.InteractionStatusQueued)

	result, err := s.enqueueAndWait(ctx, item)
	if err != nil {
		s.markFailed(ctx, interaction, err)
		return interaction
	}

	if result.State == enum.QueueItemSent && result.Receipt != nil {
		s.mu.Lock()
		interaction.MessageID = result.Receipt.MessageID
		s.mu.Unlock()
		s.transition(ctx, interaction, enum.InteractionStatusSent)
	} else {
		s.markFailed(ctx, interaction, result.Err)
	}
	return interaction
}

// failUnsent registers a pair that was never dispatched because the batch
// context ended, so the aggregate result still covers every pair.
func (s *Service) failUnsent(ctx context.Context, pair sendPair, template *models.EmailTemplate,
	variables map[string]string, config *models.CrossSendConfig, cause error) *models.Interaction {
	interaction, _ := s.buildInteraction(pair, template, variables, config)
	s.mu.Lock()
	s.interactions[interaction.ID] = interaction
	s.mu.Unlock()
	s.markFailed(ctx, interaction, cause)
	return interaction
}

func (s *Service) markFailed(ctx context.Context, interaction *models.Interaction, cause error) {
	s.mu.Lock()
	if cause != nil {
		interaction.FailReason = cause.Error()
	} else {
		interaction.FailReason = "send failed"
	}
	s.mu.Unlock()
	s.transition(ctx, interaction, enum.InteractionStatusFailed)
}

// buildInteraction renders the template for one pair and produces the
// interaction record plus the wire message.
func (s *Service) buildInteraction(pair sendPair, template *models.EmailTemplate,
	variables map[string]string, config *models.CrossSendConfig) (*models.Interaction, *models.OutboundMessage) {
	merged := map[string]string{
		"sender_email":   pair.sender.EmailAddress,
		"receiver_email": pair.receiver.EmailAddress,
	}
	for k, v := range variables {
		merged[k] = v
	}

	subject, html, text := template.Render(merged)
	if html != "" {
		html = htmlPolicy.Sanitize(html)
	}
	if config.RandomizeContent {
		html, text = s.randomizeContent(html, text)
	}

	interaction := &models.Interaction{
		ID:              utils.GenerateIdWithPrefix("int", 16),
		SourceAccountID: pair.sender.ID,
		TargetAccountID: pair.receiver.ID,
		Type:            enum.InteractionInitialContact,
		Status:          enum.InteractionStatusPending,
		Subject:         subject,
		Content:         text,
		CreatedAt:       utils.Now(),
	}

	message := &models.OutboundMessage{
		FromAddress: pair.sender.EmailAddress,
		ToAddresses: []string{pair.receiver.EmailAddress},
		Subject:     subject,
		BodyHTML:    html,
		BodyText:    text,
	}
	return interaction, message
}

// randomizeContent appends an invisible zero-width variation so repeated
// sends of the same template do not produce byte-identical bodies.
func (s *Service) randomizeContent(html, text string) (string, string) {
	s.rngMu.Lock()
	n := 1 + s.rng.Intn(5)
	s.rngMu.Unlock()

	variation := strings.Repeat("\u200b", n)
	if text != "" {
		text += variation
	}
	if html != "" {
		html += variation
	}
	return html, text
}

func (s *Service) intervalBounds(config *models.CrossSendConfig) (time.Duration, time.Duration) {
	min := durationOr(config.MinInterval, s.config.MinInterval)
	max := durationOr(config.MaxInterval, s.config.MaxInterval)
	if max < min {
		max = min
	}
	return min, max
}

func durationOr(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func (s *Service) filterRegistered(ids []string) []*models.MailboxAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]*models.MailboxAccount, 0, len(ids))
	for _, id := range ids {
		if account, ok := s.accounts[id]; ok {
			accounts = append(accounts, account)
		}
	}
	return accounts
}
