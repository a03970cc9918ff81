package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"quizicle_backend/internal/repository"
	"quizicle_backend/pkg/logger"
	"quizicle_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	hubShards      = 16

	leaderboardChannel = "quizicle:leaderboard"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AttemptNotifier 判分提交后的回调
type AttemptNotifier interface {
	QuizAttempted(ctx context.Context, quizID uint)
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type leaderboardUpdate struct {
	QuizID uint                        `json:"quizId"`
	Rows   []repository.LeaderboardRow `json:"rows"`
}

type hubEnvelope struct {
	QuizID  uint            `json:"quizId"`
	Payload json.RawMessage `json:"payload"`
}

// Subscriber 一个排行榜 websocket 连接
type Subscriber struct {
	hub    *LeaderboardHub
	conn   *websocket.Conn
	send   chan []byte
	quizID uint
}

type hubShard struct {
	mu   sync.RWMutex
	subs map[uint]map[*Subscriber]struct{}
}

// LeaderboardHub 按测验分组推送排行榜。配置了 Redis 时经 pub/sub 在多实例间广播。
type LeaderboardHub struct {
	Results *ResultService
	Redis   *redis.Client

	shards [hubShards]*hubShard
}

func NewLeaderboardHub(results *ResultService, rdb *redis.Client) *LeaderboardHub {
	h := &LeaderboardHub{Results: results, Redis: rdb}
	for i := range h.shards {
		h.shards[i] = &hubShard{subs: make(map[uint]map[*Subscriber]struct{})}
	}
	return h
}

func (h *LeaderboardHub) shard(quizID uint) *hubShard {
	return h.shards[quizID%hubShards]
}

// QuizAttempted 重新计算排行榜并推送给订阅者
func (h *LeaderboardHub) QuizAttempted(ctx context.Context, quizID uint) {
	if h.Redis == nil && h.subscriberCount(quizID) == 0 {
		return
	}

	rows, err := h.Results.Leaderboard(ctx, quizID, 0)
	if err != nil {
		logger.Log.Warn("leaderboard refresh failed", zap.Uint("quizID", quizID), zap.Error(err))
		return
	}
	payload, err := leaderboardMessage(quizID, rows)
	if err != nil {
		return
	}

	if h.Redis == nil {
		h.deliver(quizID, payload)
		return
	}

	env, _ := json.Marshal(hubEnvelope{QuizID: quizID, Payload: payload})
	if err := h.Redis.Publish(ctx, leaderboardChannel, env).Err(); err != nil {
		logger.Log.Warn("leaderboard publish failed, delivering locally", zap.Error(err))
		h.deliver(quizID, payload)
	}
}

func leaderboardMessage(quizID uint, rows []repository.LeaderboardRow) ([]byte, error) {
	if rows == nil {
		rows = []repository.LeaderboardRow{}
	}
	return json.Marshal(WSMessage{Type: "LEADERBOARD", Data: leaderboardUpdate{QuizID: quizID, Rows: rows}})
}

// Run 订阅 Redis 频道转发给本实例的连接，直到 stop 关闭；未配置 Redis 时立即返回
func (h *LeaderboardHub) Run(stop <-chan struct{}) {
	if h.Redis == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pubsub := h.Redis.Subscribe(ctx, leaderboardChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env hubEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Log.Error("leaderboard pubsub unmarshal error", zap.Error(err))
				continue
			}
			h.deliver(env.QuizID, env.Payload)
		case <-stop:
			return
		}
	}
}

func (h *LeaderboardHub) deliver(quizID uint, payload []byte) {
	s := h.shard(quizID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sub := range s.subs[quizID] {
		select {
		case sub.send <- payload:
		default:
			// 慢连接丢弃本次推送
		}
	}
}

func (h *LeaderboardHub) subscriberCount(quizID uint) int {
	s := h.shard(quizID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[quizID])
}

func (h *LeaderboardHub) register(sub *Subscriber) {
	s := h.shard(sub.quizID)
	s.mu.Lock()
	if s.subs[sub.quizID] == nil {
		s.subs[sub.quizID] = make(map[*Subscriber]struct{})
	}
	s.subs[sub.quizID][sub] = struct{}{}
	s.mu.Unlock()
	monitoring.LeaderboardSubscribers.Inc()
}

func (h *LeaderboardHub) unregister(sub *Subscriber) {
	s := h.shard(sub.quizID)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subs[sub.quizID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(s.subs, sub.quizID)
	}
	close(sub.send)
	monitoring.LeaderboardSubscribers.Dec()
}

// Stop 关闭所有连接
func (h *LeaderboardHub) Stop() {
	closed := 0
	for _, s := range h.shards {
		s.mu.Lock()
		for quizID, set := range s.subs {
			for sub := range set {
				close(sub.send)
				closed++
			}
			delete(s.subs, quizID)
		}
		s.mu.Unlock()
	}
	monitoring.LeaderboardSubscribers.Sub(float64(closed))
	logger.Log.Info("Leaderboard hub stopped", zap.Int("closedConnections", closed))
}

// Serve 升级为 websocket，先推送当前排行榜快照再注册
func (h *LeaderboardHub) Serve(w http.ResponseWriter, r *http.Request, quizID uint, snapshot []repository.LeaderboardRow) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.Error(err), zap.Uint("quizID", quizID))
		return
	}

	sub := &Subscriber{hub: h, conn: conn, send: make(chan []byte, 16), quizID: quizID}
	if payload, err := leaderboardMessage(quizID, snapshot); err == nil {
		sub.send <- payload
	}
	h.register(sub)

	go sub.writePump()
	go sub.readPump()
}

// readPump 只处理 pong 与关闭，客户端消息被忽略
func (s *Subscriber) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Debug("leaderboard websocket closed", zap.Error(err), zap.Uint("quizID", s.quizID))
			}
			return
		}
	}
}

func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
