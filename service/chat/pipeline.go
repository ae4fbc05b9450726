package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"PPLive/logger"
	"PPLive/module/chat/model"
	"PPLive/tools/errs"
	"PPLive/tools/safe"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var validate = validator.New()

// ValidateReq runs the struct tags of a request and reports failures as
// ValidationError.
func ValidateReq(v any) error {
	if err := validate.Struct(v); err != nil {
		return errs.ErrValidation.WithDetail(err.Error())
	}
	return nil
}

// Pipeline takes a message from received to persisted to broadcast, and
// propagates seen state. Broadcast only ever follows a committed row.
type Pipeline struct {
	ledger  Ledger
	rooms   *Rooms
	tap     EventTap
	chats   *keyLock
	timeout time.Duration
}

func NewPipeline(ledger Ledger, rooms *Rooms, tap EventTap, timeout time.Duration) *Pipeline {
	safe.MustNotNil(ledger, "ledger")
	safe.MustNotNil(rooms, "rooms")
	if tap == nil {
		tap = nopTap{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Pipeline{ledger: ledger, rooms: rooms, tap: tap, chats: newKeyLock(), timeout: timeout}
}

// Send validates, persists and broadcasts one message from c. On success the
// room gets new-message and c gets message-ack. Any error is for the sender
// only; nothing was broadcast.
func (p *Pipeline) Send(ctx context.Context, c *Conn, req *model.SendMessageReq) (model.Message, error) {
	if err := ValidateReq(req); err != nil {
		return model.Message{}, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return model.Message{}, errs.ErrValidation.WithDetail("content is required")
	}
	if utf8.RuneCountInString(req.Content) > model.MaxContentLen {
		return model.Message{}, errs.ErrValidation.WithDetail("content exceeds 2000 characters")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok, err := p.ledger.IsMember(ctx, req.ChatID, c.UserID)
	if err != nil {
		logger.Error("[Pipeline] membership lookup failed",
			zap.Int64("chat_id", req.ChatID), zap.Int64("user_id", c.UserID), zap.Error(err))
		return model.Message{}, errs.ErrPersistence.WithDetail("membership lookup failed")
	}
	if !ok {
		return model.Message{}, errs.ErrAuthorization.Wrap()
	}

	// serialized per chat so broadcast order equals commit order
	unlock := p.chats.Lock(req.ChatID)
	msg, err := p.ledger.InsertMessage(ctx, model.NewMessage{
		ChatID:   req.ChatID,
		SenderID: c.UserID,
		Content:  req.Content,
	})
	if err != nil {
		unlock()
		logger.Error("[Pipeline] persist failed",
			zap.Int64("chat_id", req.ChatID), zap.Int64("user_id", c.UserID), zap.Error(err))
		return model.Message{}, errs.ErrPersistence.Wrap()
	}
	p.rooms.Broadcast(msg.ChatID, model.EvNewMessage, msg, nil)
	c.Emit(model.EvMessageAck, model.MessageAck{MessageID: msg.ID, Delivered: msg.Delivered})
	unlock()

	p.tap.MessageCreated(ctx, msg)
	return msg, nil
}

// MarkSeen flips seen on messages c's user did not author and tells the room
// which ids were seen. An empty id list is ignored.
func (p *Pipeline) MarkSeen(ctx context.Context, c *Conn, req *model.MarkSeenReq) error {
	if err := ValidateReq(req); err != nil {
		return err
	}
	ids := normalizeIDs(req.MessageIDs)
	if len(ids) == 0 {
		logger.Info("[Pipeline] mark-seen without ids ignored",
			zap.Int64("chat_id", req.ChatID), zap.Int64("user_id", c.UserID))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	unlock := p.chats.Lock(req.ChatID)
	marked, err := p.ledger.MarkSeen(ctx, req.ChatID, c.UserID, ids)
	if err != nil {
		unlock()
		logger.Error("[Pipeline] mark seen failed",
			zap.Int64("chat_id", req.ChatID), zap.Int64("user_id", c.UserID), zap.Error(err))
		return errs.ErrPersistence.WithDetail("failed to mark messages seen")
	}

	// keep request order, drop anything the ledger did not match
	matched := lo.SliceToMap(marked, func(id int64) (int64, struct{}) { return id, struct{}{} })
	seen := lo.Filter(ids, func(id int64, _ int) bool {
		_, ok := matched[id]
		return ok
	})
	if len(seen) == 0 {
		unlock()
		logger.Debug("[Pipeline] mark-seen matched nothing",
			zap.Int64("chat_id", req.ChatID), zap.Int64("user_id", c.UserID))
		return nil
	}
	update := model.SeenUpdate{ChatID: req.ChatID, MessageIDs: seen, SeenBy: c.UserID}
	p.rooms.Broadcast(req.ChatID, model.EvSeenUpdate, update, nil)
	unlock()

	p.tap.MessagesSeen(ctx, update)
	return nil
}

// normalizeIDs drops non-positive ids and duplicates, keeping first-seen order.
func normalizeIDs(ids []int64) []int64 {
	return lo.Uniq(lo.Filter(ids, func(id int64, _ int) bool { return id > 0 }))
}
