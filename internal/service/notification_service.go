package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gymmaster/internal/event"
	"gymmaster/internal/mailer"
	"gymmaster/internal/model"
	"gymmaster/internal/repository"
	tplfs "gymmaster/templates"
)

type NotificationTemplate string

const (
	NotificationEmailVerification NotificationTemplate = "email_verification"
	NotificationPasswordReset     NotificationTemplate = "password_reset"
	NotificationPasswordChanged   NotificationTemplate = "password_changed"
	NotificationMembershipExpired NotificationTemplate = "membership_expired"
)

const notificationTimeout = 15 * time.Second

var notificationSubjects = map[NotificationTemplate]string{
	NotificationEmailVerification: "Verify your GymMaster email",
	NotificationPasswordReset:     "Your GymMaster password reset code",
	NotificationPasswordChanged:   "Your GymMaster password was changed",
	NotificationMembershipExpired: "Your GymMaster membership has expired",
}

type NotificationService struct {
	sender      mailer.Sender
	userRepo    repository.UserRepository
	memberRepo  repository.MemberRepository
	logger      *zap.Logger
	retryDelays []time.Duration
	templateMu  sync.RWMutex
	templates   map[NotificationTemplate]*template.Template
	wg          sync.WaitGroup
}

func NewNotificationService(
	sender mailer.Sender,
	userRepo repository.UserRepository,
	memberRepo repository.MemberRepository,
	logger *zap.Logger,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		sender:      sender,
		userRepo:    userRepo,
		memberRepo:  memberRepo,
		logger:      logger,
		retryDelays: []time.Duration{0, 5 * time.Second, 15 * time.Second, 60 * time.Second},
		templates:   make(map[NotificationTemplate]*template.Template),
	}
}

// Subscribe wires the notification emails to domain events.
func (s *NotificationService) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.PasswordChanged, s.handlePasswordChanged)
	bus.Subscribe(event.MembershipExpired, s.handleMembershipExpired)
}

// Wait blocks until queued deliveries finish; used on shutdown.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) SendOTP(
	_ context.Context,
	user *model.User,
	code string,
	purpose model.OTPPurpose,
	ttl time.Duration,
) error {
	if user == nil {
		return ErrUserNotFound
	}

	templateName := NotificationEmailVerification
	if purpose == model.OTPPurposePasswordReset {
		templateName = NotificationPasswordReset
	}

	return s.sendToUser(user, templateName, map[string]string{
		"Code":       code,
		"TTLMinutes": fmt.Sprintf("%d", int(ttl.Minutes())),
	})
}

func (s *NotificationService) handlePasswordChanged(payload any) {
	p, ok := payload.(event.PasswordChangedPayload)
	if !ok {
		return
	}
	uid, err := uuid.Parse(p.UserID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	user, err := s.userRepo.FindByID(ctx, uid)
	if err != nil {
		s.logger.Warn("password changed notice: user lookup failed", zap.String("user_id", p.UserID), zap.Error(err))
		return
	}

	if err := s.sendToUser(user, NotificationPasswordChanged, map[string]string{
		"At": p.At.UTC().Format(time.RFC1123),
	}); err != nil {
		s.logger.Error("password changed notice failed", zap.String("user_id", p.UserID), zap.Error(err))
	}
}

func (s *NotificationService) handleMembershipExpired(payload any) {
	p, ok := payload.(event.MembershipExpiredPayload)
	if !ok {
		return
	}
	memberID, err := uuid.Parse(p.MemberID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	member, err := s.memberRepo.FindByID(ctx, memberID)
	if err != nil || member.User == nil {
		s.logger.Warn("membership expired notice: member lookup failed", zap.String("member_id", p.MemberID), zap.Error(err))
		return
	}

	if err := s.sendToUser(member.User, NotificationMembershipExpired, map[string]string{
		"MembershipNumber": member.MembershipNumber,
		"EndDate":          p.EndDate.UTC().Format("2006-01-02"),
	}); err != nil {
		s.logger.Error("membership expired notice failed", zap.String("member_id", p.MemberID), zap.Error(err))
	}
}

func (s *NotificationService) sendToUser(user *model.User, templateName NotificationTemplate, vars map[string]string) error {
	if s.sender == nil {
		return mailer.ErrNotConfigured
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil
	}

	payload := cloneStringMap(vars)
	payload["Name"] = user.FullName()
	text, err := s.renderTemplate(templateName, payload)
	if err != nil {
		return err
	}

	s.sendAsyncWithRetry(mailer.Message{
		ToEmail: user.Email,
		ToName:  user.FullName(),
		Subject: notificationSubjects[templateName],
		Text:    text,
	}, templateName)
	return nil
}

func (s *NotificationService) sendAsyncWithRetry(msg mailer.Message, templateName NotificationTemplate) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var sendErr error
		for i, delay := range s.retryDelays {
			if i > 0 && delay > 0 {
				time.Sleep(delay)
			}

			ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
			sendErr = s.sender.Send(ctx, msg)
			cancel()
			if sendErr == nil || errors.Is(sendErr, mailer.ErrNotConfigured) {
				return
			}
		}

		s.logger.Error("send email notification failed",
			zap.String("template", string(templateName)),
			zap.Error(sendErr),
		)
	}()
}

func (s *NotificationService) renderTemplate(
	templateName NotificationTemplate,
	vars map[string]string,
) (string, error) {
	tpl, err := s.loadTemplate(templateName)
	if err != nil {
		return "", err
	}

	buf := bytes.NewBuffer(nil)
	if err := tpl.Execute(buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *NotificationService) loadTemplate(name NotificationTemplate) (*template.Template, error) {
	s.templateMu.RLock()
	if tpl, ok := s.templates[name]; ok {
		s.templateMu.RUnlock()
		return tpl, nil
	}
	s.templateMu.RUnlock()

	if _, ok := notificationSubjects[name]; !ok {
		return nil, fmt.Errorf("notification template not found: %s", name)
	}

	file := "email/" + string(name) + ".tmpl"
	raw, err := tplfs.EmailTemplateFS.ReadFile(file)
	if err != nil {
		return nil, err
	}

	tpl, err := template.New(file).Option("missingkey=zero").Parse(string(raw))
	if err != nil {
		return nil, err
	}

	s.templateMu.Lock()
	s.templates[name] = tpl
	s.templateMu.Unlock()
	return tpl, nil
}

func cloneStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
