package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"imposter-quiz-be/internal/corpus"
	"imposter-quiz-be/internal/service/dto"
	"imposter-quiz-be/internal/service/game"

	"go.uber.org/zap"
)

// Rooms that somehow survive this long get evicted by the cleanup loop. The
// normal teardown path is the last participant leaving.
const ROOM_TTL = 12 * time.Hour

const MAX_CODE_ATTEMPTS = 16

// RoomService is the session registry: it owns the code-to-room table and the
// lifecycle of each room's machine goroutine. It is an injected dependency,
// never a process-wide singleton, so tests run isolated instances.
type RoomService struct {
	state *roomServiceState
}

type roomServiceState struct {
	mu sync.RWMutex

	crp   *corpus.Corpus
	rooms map[string]*roomEntry

	cleanUpDone chan struct{}
}

type roomEntry struct {
	machine *game.RoomMachine
	doneCh  chan struct{}
	// Guards against closing doneCh twice; both closers hold the mutex.
	stopped bool
}

func NewRoomService(crp *corpus.Corpus) *RoomService {
	state := &roomServiceState{
		crp:         crp,
		rooms:       make(map[string]*roomEntry),
		cleanUpDone: make(chan struct{}),
	}

	go startCleanupLoop(state)

	return &RoomService{
		state: state,
	}
}

func startCleanupLoop(state *roomServiceState) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-state.cleanUpDone:
			return

		case <-ticker.C:
			state.mu.Lock()

			for code, entry := range state.rooms {
				if time.Since(entry.machine.CreatedAt()) < ROOM_TTL {
					continue
				}

				zap.S().Infof("room %s exceeded ttl, evicting", code)

				if !entry.stopped {
					close(entry.doneCh)
					entry.stopped = true
				}

				delete(state.rooms, code)
			}

			state.mu.Unlock()
		}
	}
}

func (rs *RoomService) Close() {
	close(rs.state.cleanUpDone)
}

// CreateRoom allocates a room in the lobby phase with the creator already in
// the roster as host. The creator's connection attaches later through the
// websocket join carrying the returned participant id.
func (rs *RoomService) CreateRoom(req dto.CreateRoomRequest) (dto.CreateRoomResponse, error) {
	if req.CreatorName == "" {
		return dto.CreateRoomResponse{}, errors.New("creator name must not be empty")
	}

	settings, err := normalizeSettings(req.Settings)
	if err != nil {
		return dto.CreateRoomResponse{}, err
	}

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	// Collision probability is low but not zero; retry instead of assuming.
	var code string

	for attempt := 0; ; attempt++ {
		if attempt >= MAX_CODE_ATTEMPTS {
			return dto.CreateRoomResponse{}, errors.New("failed to allocate a room code")
		}

		candidate, err := generateRoomCode()
		if err != nil {
			return dto.CreateRoomResponse{}, fmt.Errorf("failed to generate room code: %w", err)
		}

		if _, taken := rs.state.rooms[candidate]; !taken {
			code = candidate
			break
		}

		zap.S().Debugf("room code collision on %s, retrying", candidate)
	}

	ctx := game.NewRoomContext(code, settings, rs.state.crp)

	host := &game.Participant{
		ID:     game.GenShortID(),
		Name:   req.CreatorName,
		IsHost: true,
	}

	ctx.Participants[host.ID] = host
	ctx.JoinOrder = append(ctx.JoinOrder, host.ID)

	doneCh := make(chan struct{})
	machine := game.NewRoomMachine(ctx, doneCh, rs.removeIfEmpty)

	rs.state.rooms[code] = &roomEntry{
		machine: machine,
		doneCh:  doneCh,
	}

	go machine.Start()

	zap.S().Infof("room %s created by %s", code, req.CreatorName)

	return dto.CreateRoomResponse{
		Code:     code,
		Creator:  host.Info(),
		Roster:   []game.ParticipantInfo{host.Info()},
		Settings: settings,
	}, nil
}

// JoinRoom resolves the code and forwards the join into the room's event loop.
// The join outcome arrives on the request's response channel; the returned
// request channel is the caller's handle for all further requests.
func (rs *RoomService) JoinRoom(req *game.JoinRoomRequest) (chan game.RequestWrapper, error) {
	if req.Code == "" {
		return nil, game.ErrNotFound
	}

	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	entry := rs.state.rooms[req.Code]
	if entry == nil {
		return nil, game.ErrNotFound
	}

	reqCh := entry.machine.GetReqCh()

	wrapper := game.RequestWrapper{
		ReqType:    game.REQ_JOIN_ROOM,
		NativeData: req,
	}

	reqTimer := time.NewTimer(5 * time.Second)
	defer reqTimer.Stop()

	select {
	case reqCh <- wrapper:
		return reqCh, nil

	case <-reqTimer.C:
		zap.S().Warnf("room %s did not accept the join request in time", req.Code)
		return nil, errors.New("failed to join room")
	}
}

func (rs *RoomService) Exists(code string) bool {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	_, exists := rs.state.rooms[code]
	return exists
}

func (rs *RoomService) RoomCount() int {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	return len(rs.state.rooms)
}

// removeIfEmpty is the machine's callback once its roster empties; it runs on
// the room's own goroutine right before that goroutine exits.
func (rs *RoomService) removeIfEmpty(code string) {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	entry, exists := rs.state.rooms[code]
	if !exists {
		return
	}

	entry.stopped = true
	delete(rs.state.rooms, code)

	zap.S().Infof("room %s removed: roster empty", code)
}
