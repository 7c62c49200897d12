// Package dispatch turns inbound chat messages into moderation actions and routed commands.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/moderation"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

// StatusCommand is the only command answered in unapproved groups.
const StatusCommand = "alive"

const (
	outcomeHandled   = "handled"
	outcomeIgnored   = "ignored"
	outcomeMember    = "membership"
	outcomePending   = "unapproved"
	outcomeRequested = "approval_requested"
	outcomeBanned    = "banned"
	outcomeModerated = "moderated"
	outcomeDenied    = "denied"
	outcomeUnknown   = "unknown_command"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
	outcomeSwallowed = "swallowed"
)

const genericFailure = "❌ Something went wrong. Please try again later."

// transportNoise matches transport decryption errors that are expected and never reported.
var transportNoise = []string{"Bad MAC", "decrypt"}

type Options struct {
	OwnerID int64
	// ControlChatID receives approval requests. Zero disables forwarding.
	ControlChatID int64
}

// Pipeline processes inbound messages. Messages of one chat are processed one at a time.
type Pipeline struct {
	store      storage.Store
	transport  chat.Transport
	router     *Router
	locks      *ChatLocks
	resolver   *roles.Resolver
	moderation *moderation.Engine
	opts       Options
}

func NewPipeline(store storage.Store, transport chat.Transport, router *Router, locks *ChatLocks, opts Options) *Pipeline {
	if locks == nil {
		locks = NewChatLocks()
	}
	return &Pipeline{
		store:      store,
		transport:  transport,
		router:     router,
		locks:      locks,
		resolver:   roles.NewResolver(opts.OwnerID, transport),
		moderation: moderation.NewEngine(store, transport),
		opts:       opts,
	}
}

// Handle processes one message. It never returns an error: failures are logged
// and answered at this boundary so the next message is processed normally.
func (p *Pipeline) Handle(ctx context.Context, msg chat.Message) {
	ctx = telemetry.WithCorrelation(ctx, telemetry.NewCorrelationID())
	ctx, span := telemetry.StartSpan(ctx, "dispatch.Handle",
		attribute.Int64("chat.id", msg.ChatID),
		attribute.Int64("user.id", msg.From.ID),
	)
	defer span.End()

	unlock := p.locks.Lock(msg.ChatID)
	defer unlock()

	var outcome string
	telemetry.TimeFunc(telemetry.HandleDuration, func() {
		var err error
		outcome, err = p.guarded(ctx, msg)
		if err != nil {
			telemetry.RecordError(span, err)
			outcome = p.fail(ctx, msg, err)
		}
	})

	span.SetAttributes(attribute.String("outcome", outcome))
	telemetry.Messages.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) guarded(ctx context.Context, msg chat.Message) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Logger(ctx).Error("dispatch: Recovered from panic", "panic", r, "stack", string(debug.Stack()))
			outcome, err = outcomeFailed, apperr.New(apperr.Unknown, fmt.Sprintf("panic: %v", r))
		}
	}()
	return p.process(ctx, msg)
}

func (p *Pipeline) process(ctx context.Context, msg chat.Message) (string, error) {
	log := telemetry.Logger(ctx).With("chat_id", msg.ChatID, "user_id", msg.From.ID)

	snap, err := p.store.LoadSnapshot(ctx)
	if err != nil {
		return outcomeFailed, apperr.Wrap(apperr.Transient, "could not load state", err)
	}

	var group storage.GroupSettings
	if msg.IsGroup() {
		group = p.group(ctx, msg, snap)
	}

	if m, ok := msg.Content.(chat.Membership); ok {
		if msg.IsGroup() && group.Approved {
			p.greet(ctx, msg.ChatID, group, m)
		}
		return outcomeMember, nil
	}

	if msg.IsGroup() && !group.Approved {
		cmd, ok := Tokenize(msg.Command(), snap.Prefix)
		if !ok || cmd.Name != StatusCommand {
			return outcomePending, nil
		}
		return outcomeRequested, p.requestApproval(ctx, msg, group, snap.Prefix)
	}

	role := p.resolver.Resolve(ctx, roles.Subject{
		UserID:   msg.From.ID,
		ChatID:   msg.ChatID,
		IsGroup:  msg.IsGroup(),
		SelfSent: msg.SelfSent,
	}, snap)
	if role == roles.Banned {
		log.Debug("dispatch: Dropping message from banned user")
		return outcomeBanned, nil
	}

	if msg.IsGroup() && group.Antilink && !msg.SelfSent && role != roles.Owner &&
		moderation.ContainsLink(msg.PlainText()) {
		_, err := p.moderation.Warn(ctx, moderation.Incident{
			ChatID:    msg.ChatID,
			User:      msg.From,
			MessageID: msg.ID,
			Reason:    moderation.LinkReason,
		}, snap.Warning(msg.ChatID, msg.From.ID))
		return outcomeModerated, err
	}

	cmd, ok := Tokenize(msg.Command(), snap.Prefix)
	if !ok {
		return outcomeIgnored, nil
	}
	log = log.With("command", cmd.Name, "role", role.String())

	if required, known := p.router.Required(cmd.Name); known && !role.Allows(required) {
		log.Info("dispatch: Permission denied", "required", required.String())
		p.react(ctx, msg, chat.ReactionDenied)
		return outcomeDenied, p.reply(ctx, msg, denial(required))
	}

	req := &Request{
		Message:  msg,
		Command:  cmd.Name,
		Args:     cmd.Args,
		Raw:      cmd.Raw,
		Role:     role,
		Snapshot: snap,
		Prefix:   snap.Prefix,
		sender:   p.transport,
	}

	claimedBy, err := p.router.Dispatch(ctx, req)
	if err != nil {
		return outcomeFailed, err
	}
	if claimedBy == "" {
		p.react(ctx, msg, chat.ReactionFailed)
		return outcomeUnknown, p.reply(ctx, msg,
			fmt.Sprintf("Unknown command: %s. Type %shelp for available commands.", cmd.Name, snap.Prefix))
	}

	telemetry.Commands.WithLabelValues(cmd.Name, claimedBy).Inc()
	log.Info("dispatch: Command handled", "group", claimedBy)
	return outcomeHandled, nil
}

// group returns the settings of the message's chat, registering chats seen for the first time.
func (p *Pipeline) group(ctx context.Context, msg chat.Message, snap *storage.Snapshot) storage.GroupSettings {
	if g, ok := snap.Group(msg.ChatID); ok {
		return g
	}

	g := storage.GroupSettings{ChatID: msg.ChatID, Title: msg.ChatTitle}
	if err := p.store.UpsertGroup(ctx, g); err != nil {
		telemetry.Logger(ctx).Error("dispatch: Failed to register group", "error", err, "chat_id", msg.ChatID)
		return g
	}
	snap.Groups[msg.ChatID] = g
	telemetry.Logger(ctx).Info("dispatch: Registered new group", "chat_id", msg.ChatID, "title", msg.ChatTitle)
	return g
}

func (p *Pipeline) greet(ctx context.Context, chatID int64, group storage.GroupSettings, m chat.Membership) {
	send := func(text string, u chat.User) {
		err := p.transport.Send(ctx, chat.Outgoing{
			ChatID:   chatID,
			Text:     text + " " + chat.Mention(u),
			Mentions: []chat.User{u},
		})
		if err != nil {
			telemetry.Logger(ctx).Error("dispatch: Failed to greet member", "error", err, "chat_id", chatID, "user_id", u.ID)
		}
	}

	if group.Welcome {
		for _, u := range m.Joined {
			send(group.WelcomeMessage(), u)
		}
	}
	if group.Goodbye {
		for _, u := range m.Left {
			send(group.GoodbyeMessage(), u)
		}
	}
}

func (p *Pipeline) requestApproval(ctx context.Context, msg chat.Message, group storage.GroupSettings, prefix string) error {
	log := telemetry.Logger(ctx).With("chat_id", msg.ChatID)

	if group.Blocked {
		return p.reply(ctx, msg, "This group was rejected by the bot owner.")
	}
	if p.opts.ControlChatID == 0 {
		log.Warn("dispatch: No control chat configured, approval request dropped")
		return p.reply(ctx, msg, "This group is not approved.")
	}

	title := group.Title
	if title == "" {
		title = msg.ChatTitle
	}
	request := fmt.Sprintf("New group request:\nName: %s\nID: %d\nUse %saccept %d or %sreject %d",
		title, msg.ChatID, prefix, msg.ChatID, prefix, msg.ChatID)
	if err := p.transport.Send(ctx, chat.Outgoing{ChatID: p.opts.ControlChatID, Text: request}); err != nil {
		return apperr.Wrap(apperr.Transient, "could not forward the approval request", err)
	}
	log.Info("dispatch: Approval request forwarded", "control_chat_id", p.opts.ControlChatID)

	return p.reply(ctx, msg, "This group is not approved. Request sent to control group.")
}

// fail converts a handler error into a reply and returns the outcome label.
func (p *Pipeline) fail(ctx context.Context, msg chat.Message, err error) string {
	log := telemetry.Logger(ctx).With("chat_id", msg.ChatID, "user_id", msg.From.ID)

	if isTransportNoise(err) {
		log.Debug("dispatch: Ignored transport decryption error", "error", err)
		return outcomeSwallowed
	}

	kind := apperr.KindOf(err)
	telemetry.Failures.WithLabelValues(kind.String()).Inc()

	if apperr.UserFacing(err) {
		log.Info("dispatch: Command rejected", "error", err, "kind", kind.String())
		reaction := chat.ReactionFailed
		if kind == apperr.Authorization {
			reaction = chat.ReactionDenied
		}
		p.react(ctx, msg, reaction)
		if replyErr := p.reply(ctx, msg, apperr.Message(err)); replyErr != nil {
			log.Error("dispatch: Failed to send rejection", "error", replyErr)
		}
		return outcomeRejected
	}

	log.Error("dispatch: Message handling failed", "error", err, "kind", kind.String())
	p.react(ctx, msg, chat.ReactionFailed)
	if replyErr := p.reply(ctx, msg, genericFailure); replyErr != nil {
		log.Error("dispatch: Failed to send failure reply", "error", replyErr)
	}
	return outcomeFailed
}

// isTransportNoise matches the root cause of err against transportNoise.
// apperr messages may quote user input and are never matched.
func isTransportNoise(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := e.(*apperr.Error); ok {
			continue
		}
		if errors.Unwrap(e) != nil {
			continue
		}
		for _, noise := range transportNoise {
			if strings.Contains(e.Error(), noise) {
				return true
			}
		}
	}
	return false
}

func (p *Pipeline) reply(ctx context.Context, msg chat.Message, text string) error {
	return p.transport.Send(ctx, chat.Outgoing{ChatID: msg.ChatID, Text: text, ReplyTo: msg.ID})
}

func (p *Pipeline) react(ctx context.Context, msg chat.Message, reaction chat.Reaction) {
	if err := p.transport.React(ctx, msg.ChatID, msg.ID, reaction); err != nil {
		telemetry.Logger(ctx).Warn("dispatch: Failed to react", "error", err, "chat_id", msg.ChatID)
	}
}

func denial(required roles.Role) string {
	if required == roles.Owner {
		return "This command is for bot owners only."
	}
	return "This command is for group admins only."
}
