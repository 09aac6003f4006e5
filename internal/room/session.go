// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/driftlabs/roomkit/internal/auth"
	"github.com/driftlabs/roomkit/internal/authz"
	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/metrics"
	"github.com/driftlabs/roomkit/internal/models"
	"github.com/driftlabs/roomkit/internal/presence"
	"github.com/driftlabs/roomkit/internal/protocol"
	"github.com/driftlabs/roomkit/internal/store"
	"github.com/driftlabs/roomkit/internal/throttle"
)

// State is the session lifecycle position.
type State int

const (
	StateUnjoined State = iota
	StateJoining
	StateJoined
	StateLeft
)

// String implements fmt.Stringer for logs.
func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Deps are the collaborators every session shares.
type Deps struct {
	Verifier *auth.Verifier
	Authz    *authz.Enforcer
	Orgs     auth.OrgResolver
	Quota    auth.QuotaChecker
	Presence *presence.Directory
	Throttle *throttle.Limiter
	Store    store.Store
	Hub      *Hub

	// PresenceIdleTimeout is advertised to clients in the join reply
	// so their render-side idle handling follows the server's knob.
	PresenceIdleTimeout time.Duration
}

// joinParams is the join handshake payload.
type joinParams struct {
	Token string `json:"token"`
}

// joinResponse is the ok-reply payload for a successful join.
type joinResponse struct {
	RoomID                string      `json:"room_id"`
	UserID                string      `json:"user_id"`
	Role                  models.Role `json:"role"`
	PresenceIdleTimeoutMS int64       `json:"presence_idle_timeout_ms,omitempty"`
}

// roomState is the state-sync payload pushed to a freshly joined client.
type roomState struct {
	Comments []models.Comment `json:"comments"`
}

// activityPage is the activity:list reply payload.
type activityPage struct {
	Entries []models.ActivityEntry `json:"entries"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// Session is the per-(room, connection) logical session. One dispatch
// goroutine (the connection's read loop) calls Handle; the only
// concurrent entry points are the presence diff callback and Terminate,
// both of which touch guarded state only.
type Session struct {
	id     string
	roomID string
	topic  string
	outbox Outbox
	deps   Deps

	mu       sync.Mutex
	state    State
	identity models.Identity
	role     models.Role
	org      *models.Organization
	unsub    func()
}

// NewSession creates an unjoined session for one room topic on one
// connection.
func NewSession(topic string, outbox Outbox, deps Deps) (*Session, error) {
	roomID, ok := protocol.RoomID(topic)
	if !ok {
		return nil, errors.New("room: topic is not room-scoped")
	}
	return &Session{
		id:     uuid.New().String(),
		roomID: roomID,
		topic:  topic,
		outbox: outbox,
		deps:   deps,
	}, nil
}

// ID returns the session ref used as the presence device key.
func (s *Session) ID() string { return s.id }

// RoomID returns the room this session belongs to.
func (s *Session) RoomID() string { return s.roomID }

// Handle dispatches one inbound frame for this session's topic.
func (s *Session) Handle(ctx context.Context, msg protocol.Message) {
	metrics.EventsTotal.WithLabelValues(msg.Event).Inc()

	switch msg.Event {
	case protocol.EventJoin:
		s.handleJoin(ctx, msg)
	case protocol.EventLeave:
		s.Terminate()
		s.replyOK(msg.Ref, nil)
	case protocol.EventHeartbeat:
		s.replyOK(msg.Ref, nil)
	default:
		s.handleEvent(ctx, msg)
	}
}

func (s *Session) handleJoin(ctx context.Context, msg protocol.Message) {
	s.mu.Lock()
	if s.state != StateUnjoined {
		state := s.state
		s.mu.Unlock()
		logging.Warn().
			Str("room_id", s.roomID).
			Stringer("state", state).
			Msg("join rejected: session not in unjoined state")
		s.replyErr(msg.Ref, protocol.ReasonInvalidPayload)
		return
	}
	s.state = StateJoining
	s.mu.Unlock()

	var params joinParams
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &params); err != nil {
			s.rejectJoin(msg.Ref, protocol.ReasonInvalidPayload)
			return
		}
	}

	grant, err := s.deps.Verifier.VerifyRoomToken(params.Token, s.roomID)
	if err != nil {
		reason := protocol.ReasonUnauthorizedToken
		if errors.Is(err, auth.ErrRoomNotGranted) {
			reason = protocol.ReasonForbidden
		}
		logging.Debug().Err(err).Str("room_id", s.roomID).Msg("join token rejected")
		s.rejectJoin(msg.Ref, reason)
		return
	}

	org, err := s.deps.Orgs.ResolveOrg(grant.OrgID)
	if err != nil {
		logging.Error().Err(err).Str("org_id", grant.OrgID).Msg("org resolution failed")
		s.rejectJoin(msg.Ref, protocol.ReasonStoreUnavailable)
		return
	}

	if !s.deps.Quota.Acquire(s.roomID) {
		s.rejectJoin(msg.Ref, protocol.ReasonRoomFull)
		return
	}

	s.mu.Lock()
	s.state = StateJoined
	s.identity = grant.Identity
	s.role = grant.Role
	s.org = org
	s.unsub = s.deps.Presence.Subscribe(s.roomID, s.pushPresenceDiff)
	s.mu.Unlock()

	s.deps.Hub.add(s)
	metrics.JoinsTotal.WithLabelValues("ok").Inc()

	logging.Info().
		Str("room_id", s.roomID).
		Str("user_id", grant.Identity.UserID).
		Str("role", string(grant.Role)).
		Msg("room session joined")

	s.replyOK(msg.Ref, joinResponse{
		RoomID:                s.roomID,
		UserID:                grant.Identity.UserID,
		Role:                  grant.Role,
		PresenceIdleTimeoutMS: s.deps.PresenceIdleTimeout.Milliseconds(),
	})
	s.afterJoin(ctx)
}

func (s *Session) rejectJoin(ref string, reason protocol.Reason) {
	s.mu.Lock()
	s.state = StateUnjoined
	s.mu.Unlock()
	metrics.JoinsTotal.WithLabelValues(string(reason)).Inc()
	s.replyErr(ref, reason)
}

// afterJoin runs the state-sync step: register presence, then push the
// presence snapshot and current room state to just this client.
func (s *Session) afterJoin(ctx context.Context) {
	s.deps.Presence.Track(s.roomID, s.identity.UserID, protocol.PresenceMeta{
		DisplayName:   s.identity.DisplayName,
		Color:         s.identity.Color,
		CursorVisible: true,
		OnlineAt:      time.Now().UnixMilli(),
		Ref:           s.id,
	})

	s.push(protocol.EventPresenceState, s.deps.Presence.List(s.roomID))

	comments, err := s.deps.Store.ListComments(ctx, s.roomID)
	if err != nil {
		logging.Error().Err(err).Str("room_id", s.roomID).Msg("room state load failed")
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	s.push(protocol.EventRoomState, roomState{Comments: comments})
}

// handleEvent decodes and dispatches a typed client event on a joined
// session.
func (s *Session) handleEvent(ctx context.Context, msg protocol.Message) {
	s.mu.Lock()
	joined := s.state == StateJoined
	s.mu.Unlock()
	if !joined {
		s.replyErr(msg.Ref, protocol.ReasonNotFound)
		return
	}

	ev, err := protocol.DecodeClientEvent(msg.Event, msg.Payload)
	if err != nil {
		s.replyWithError(msg.Ref, err)
		return
	}

	switch ev := ev.(type) {
	case *protocol.CursorUpdate:
		s.onCursorUpdate(msg.Ref, ev)
	case *protocol.SelectionUpdate:
		s.onSelectionUpdate(msg.Ref, ev)
	case *protocol.TypingStart:
		s.onTyping(msg.Ref, protocol.EventTypingStart)
	case *protocol.TypingStop:
		s.onTyping(msg.Ref, protocol.EventTypingStop)
	case *protocol.PresenceUpdate:
		s.onPresenceUpdate(msg.Ref, ev)
	case *protocol.CommentCreate:
		s.onCommentCreate(ctx, msg.Ref, ev)
	case *protocol.CommentUpdate:
		s.onCommentUpdate(ctx, msg.Ref, ev)
	case *protocol.CommentDelete:
		s.onCommentDelete(ctx, msg.Ref, ev)
	case *protocol.CommentResolve:
		s.onCommentResolve(ctx, msg.Ref, ev)
	case *protocol.ReactionAdd:
		s.onReactionAdd(ctx, msg.Ref, ev)
	case *protocol.ReactionRemove:
		s.onReactionRemove(ctx, msg.Ref, ev)
	case *protocol.ReactionToggle:
		s.onReactionToggle(ctx, msg.Ref, ev)
	case *protocol.ActivityList:
		s.onActivityList(ctx, msg.Ref, ev)
	default:
		s.replyErr(msg.Ref, protocol.ReasonUnknownEvent)
	}
}

func (s *Session) onCursorUpdate(ref string, ev *protocol.CursorUpdate) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	// Rate-limited updates are dropped, not queued: stale cursor
	// positions are worthless and the next sample supersedes them.
	if !s.deps.Throttle.Allow(s.roomID, s.identity.UserID) {
		metrics.ThrottleDrops.Inc()
		s.replyOK(ref, nil)
		return
	}

	s.broadcastOthers(ref, protocol.EventCursorUpdate, protocol.CursorBroadcast{
		Sender:    s.sender(),
		X:         ev.X,
		Y:         ev.Y,
		ElementID: ev.ElementID,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Session) onSelectionUpdate(ref string, ev *protocol.SelectionUpdate) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	s.broadcastOthers(ref, protocol.EventSelectionUpdate, protocol.SelectionBroadcast{
		Sender:    s.sender(),
		Selection: ev.Selection,
		ElementID: ev.ElementID,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Session) onTyping(ref, event string) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	s.broadcastOthers(ref, event, protocol.TypingBroadcast{
		Sender:    s.sender(),
		Timestamp: time.Now().UnixMilli(),
	})
}

// onPresenceUpdate merges only the fields present in the payload.
// Presence metadata is not a room mutation, so no role gate applies.
func (s *Session) onPresenceUpdate(ref string, ev *protocol.PresenceUpdate) {
	s.deps.Presence.Update(s.roomID, s.identity.UserID, s.id, func(meta *protocol.PresenceMeta) {
		if ev.Status != nil {
			meta.Status = *ev.Status
		}
		if ev.CursorVisible != nil {
			meta.CursorVisible = *ev.CursorVisible
		}
	})
	s.replyOK(ref, nil)
}

func (s *Session) onCommentCreate(ctx context.Context, ref string, ev *protocol.CommentCreate) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}
	if !s.org.HasFeature(models.FeatureComments) {
		s.replyErr(ref, protocol.ReasonFeatureNotAvailable)
		return
	}

	comment, err := s.deps.Store.CreateComment(ctx, models.Comment{
		RoomID:   s.roomID,
		UserID:   s.identity.UserID,
		ParentID: ev.ParentID,
		Body:     ev.Body,
		Position: ev.Position,
	})
	if err != nil {
		s.replyStoreError(ref, "comment create", err)
		return
	}

	s.broadcastAll(protocol.EventCommentCreated, comment)
	s.recordActivity(ctx, models.ActivityCommentCreated, comment.ID)
	s.replyOK(ref, comment)
}

func (s *Session) onCommentUpdate(ctx context.Context, ref string, ev *protocol.CommentUpdate) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	comment, err := s.deps.Store.UpdateComment(ctx, s.roomID, ev.CommentID, s.identity.UserID, ev.Body)
	if err != nil {
		s.replyStoreError(ref, "comment update", err)
		return
	}

	s.broadcastAll(protocol.EventCommentUpdated, comment)
	s.recordActivity(ctx, models.ActivityCommentUpdated, comment.ID)
	s.replyOK(ref, comment)
}

func (s *Session) onCommentDelete(ctx context.Context, ref string, ev *protocol.CommentDelete) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	comment, err := s.deps.Store.DeleteComment(ctx, s.roomID, ev.CommentID, s.identity.UserID)
	if err != nil {
		s.replyStoreError(ref, "comment delete", err)
		return
	}

	s.broadcastAll(protocol.EventCommentDeleted, comment)
	s.recordActivity(ctx, models.ActivityCommentDeleted, comment.ID)
	s.replyOK(ref, comment)
}

func (s *Session) onCommentResolve(ctx context.Context, ref string, ev *protocol.CommentResolve) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	comment, err := s.deps.Store.ResolveComment(ctx, s.roomID, ev.CommentID, s.identity.UserID)
	if err != nil {
		s.replyStoreError(ref, "comment resolve", err)
		return
	}

	s.broadcastAll(protocol.EventCommentResolved, comment)
	s.recordActivity(ctx, models.ActivityCommentResolved, comment.ID)
	s.replyOK(ref, comment)
}

func (s *Session) onReactionAdd(ctx context.Context, ref string, ev *protocol.ReactionAdd) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	comment, err := s.deps.Store.AddReaction(ctx, s.roomID, ev.CommentID, s.identity.UserID, ev.Emoji)
	if err != nil {
		s.replyStoreError(ref, "reaction add", err)
		return
	}

	s.broadcastAll(protocol.EventReactionAdded, comment)
	s.recordActivity(ctx, models.ActivityReactionAdded, comment.ID)
	s.replyOK(ref, comment)
}

func (s *Session) onReactionRemove(ctx context.Context, ref string, ev *protocol.ReactionRemove) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	comment, err := s.deps.Store.RemoveReaction(ctx, s.roomID, ev.CommentID, s.identity.UserID, ev.Emoji)
	if err != nil {
		s.replyStoreError(ref, "reaction remove", err)
		return
	}

	s.broadcastAll(protocol.EventReactionRemoved, comment)
	s.recordActivity(ctx, models.ActivityReactionRemoved, comment.ID)
	s.replyOK(ref, comment)
}

func (s *Session) onReactionToggle(ctx context.Context, ref string, ev *protocol.ReactionToggle) {
	if !s.deps.Authz.CanWrite(s.role) {
		s.replyErr(ref, protocol.ReasonForbidden)
		return
	}

	comment, added, err := s.deps.Store.ToggleReaction(ctx, s.roomID, ev.CommentID, s.identity.UserID, ev.Emoji)
	if err != nil {
		s.replyStoreError(ref, "reaction toggle", err)
		return
	}

	if added {
		s.broadcastAll(protocol.EventReactionAdded, comment)
		s.recordActivity(ctx, models.ActivityReactionAdded, comment.ID)
	} else {
		s.broadcastAll(protocol.EventReactionRemoved, comment)
		s.recordActivity(ctx, models.ActivityReactionRemoved, comment.ID)
	}
	s.replyOK(ref, comment)
}

// onActivityList replies directly; membership is the only gate.
func (s *Session) onActivityList(ctx context.Context, ref string, ev *protocol.ActivityList) {
	limit := ev.Limit
	if limit == 0 {
		limit = 25
	}

	entries, err := s.deps.Store.ListActivity(ctx, s.roomID, limit, ev.Offset)
	if err != nil {
		s.replyStoreError(ref, "activity list", err)
		return
	}
	if entries == nil {
		entries = []models.ActivityEntry{}
	}
	s.replyOK(ref, activityPage{Entries: entries, Limit: limit, Offset: ev.Offset})
}

// recordActivity appends a feed entry and broadcasts it. Feed failures
// are logged but do not fail the mutation that already persisted.
func (s *Session) recordActivity(ctx context.Context, kind, commentID string) {
	detail, _ := json.Marshal(map[string]string{"comment_id": commentID})
	entry, err := s.deps.Store.AppendActivity(ctx, models.ActivityEntry{
		RoomID: s.roomID,
		UserID: s.identity.UserID,
		Kind:   kind,
		Detail: detail,
	})
	if err != nil {
		logging.Warn().Err(err).Str("room_id", s.roomID).Str("kind", kind).Msg("activity append failed")
		return
	}
	s.broadcastAll(protocol.EventActivityCreated, entry)
}

// Terminate ends the session and releases its per-user bookkeeping.
// Safe to call more than once.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.state != StateJoined {
		s.state = StateLeft
		s.mu.Unlock()
		return
	}
	s.state = StateLeft
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.deps.Hub.remove(s)
	s.deps.Presence.Untrack(s.roomID, s.identity.UserID, s.id)
	s.deps.Throttle.Release(s.roomID, s.identity.UserID)
	s.deps.Quota.Release(s.roomID)

	logging.Info().
		Str("room_id", s.roomID).
		Str("user_id", s.identity.UserID).
		Msg("room session terminated")
}

func (s *Session) sender() protocol.Sender {
	return protocol.Sender{
		UserID:      s.identity.UserID,
		DisplayName: s.identity.DisplayName,
		Color:       s.identity.Color,
	}
}

// broadcastOthers relays an ephemeral event to every other member and
// acks the sender. The sender already knows its own cursor/selection.
func (s *Session) broadcastOthers(ref, event string, payload interface{}) {
	msg, err := protocol.NewMessage(s.topic, event, payload, "")
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("broadcast encode failed")
		s.replyErr(ref, protocol.ReasonInvalidPayload)
		return
	}
	s.deps.Hub.Broadcast(s.roomID, msg, s)
	s.replyOK(ref, nil)
}

// broadcastAll relays a persisted mutation to every member including the
// sender, who needs the canonical server-assigned result.
func (s *Session) broadcastAll(event string, payload interface{}) {
	msg, err := protocol.NewMessage(s.topic, event, payload, "")
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("broadcast encode failed")
		return
	}
	s.deps.Hub.Broadcast(s.roomID, msg, nil)
}

func (s *Session) push(event string, payload interface{}) {
	msg, err := protocol.NewMessage(s.topic, event, payload, "")
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("push encode failed")
		return
	}
	s.outbox.Send(msg)
}

func (s *Session) pushPresenceDiff(diff protocol.PresenceDiffPayload) {
	s.push(protocol.EventPresenceDiff, diff)
}

func (s *Session) replyOK(ref string, response interface{}) {
	msg, err := protocol.OKReply(s.topic, ref, response)
	if err != nil {
		logging.Error().Err(err).Msg("reply encode failed")
		return
	}
	s.outbox.Send(msg)
}

func (s *Session) replyErr(ref string, reason protocol.Reason) {
	metrics.ReplyErrors.WithLabelValues(string(reason)).Inc()
	msg, err := protocol.ErrReply(s.topic, ref, reason)
	if err != nil {
		logging.Error().Err(err).Msg("reply encode failed")
		return
	}
	s.outbox.Send(msg)
}

// replyWithError maps a dispatch error onto the wire. ReplyErrors carry
// their reason and field detail; anything else is an internal failure.
func (s *Session) replyWithError(ref string, err error) {
	var re *protocol.ReplyError
	if errors.As(err, &re) {
		metrics.ReplyErrors.WithLabelValues(string(re.Reason)).Inc()
		msg, merr := protocol.ErrReplyPayload(s.topic, ref, protocol.ReasonPayload{
			Reason: re.Reason,
			Fields: re.Fields,
		})
		if merr != nil {
			logging.Error().Err(merr).Msg("reply encode failed")
			return
		}
		s.outbox.Send(msg)
		return
	}
	logging.Error().Err(err).Str("room_id", s.roomID).Msg("event dispatch failed")
	s.replyErr(ref, protocol.ReasonInvalidPayload)
}

// replyStoreError translates persistence outcomes. Nothing is broadcast
// on any store error path.
func (s *Session) replyStoreError(ref, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		metrics.StoreOperations.WithLabelValues(op, "domain_error").Inc()
		s.replyErr(ref, protocol.ReasonNotFound)
	case errors.Is(err, store.ErrUnauthorized):
		metrics.StoreOperations.WithLabelValues(op, "domain_error").Inc()
		s.replyErr(ref, protocol.ReasonUnauthorized)
	case errors.Is(err, store.ErrUnavailable):
		metrics.StoreOperations.WithLabelValues(op, "error").Inc()
		s.replyErr(ref, protocol.ReasonStoreUnavailable)
	default:
		metrics.StoreOperations.WithLabelValues(op, "error").Inc()
		logging.Error().Err(err).Str("room_id", s.roomID).Str("operation", op).Msg("store operation failed")
		s.replyErr(ref, protocol.ReasonStoreUnavailable)
	}
}
