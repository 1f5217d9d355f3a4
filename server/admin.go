package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
)

// mapUpdate POST /admin/config 的载荷，未给出的字段保持不变
type mapUpdate struct {
	ID    int32    `json:"id"`
	Width *float32 `json:"width,omitempty"`
	Depth *float32 `json:"depth,omitempty"`
}

// HandleAdminConfig 读取配置与调整地图移动边界
// GET /admin/config            返回当前配置（含运行时边界）
// GET /admin/config?map=1      返回单张地图边界
// POST /admin/config           以 JSON 载荷更新一张地图的边界
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if q := r.URL.Query().Get("map"); q != "" {
			id, err := strconv.ParseInt(q, 10, 32)
			if err != nil {
				http.Error(w, "invalid map id", http.StatusBadRequest)
				return
			}
			writeJSON(w, http.StatusOK, s.bounds.Get(int32(id)))
			return
		}
		cur := s.cfg
		cur.Maps = s.bounds.All()
		sort.Slice(cur.Maps, func(i, j int) bool { return cur.Maps[i].ID < cur.Maps[j].ID })
		writeJSON(w, http.StatusOK, cur)
	case http.MethodPost:
		var body mapUpdate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.ID <= 0 {
			http.Error(w, "map id must be positive", http.StatusBadRequest)
			return
		}
		m := s.bounds.Get(body.ID)
		if body.Width != nil {
			m.Width = *body.Width
		}
		if body.Depth != nil {
			m.Depth = *body.Depth
		}
		if m.Width <= 0 || m.Depth <= 0 {
			http.Error(w, "bounds must be positive", http.StatusBadRequest)
			return
		}
		s.bounds.Set(m)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "map": m})
		Log.Infow("map bounds updated", "map", m.ID, "width", m.Width, "depth", m.Depth)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	rooms, members, conns := s.hub.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"conns":    conns,
		"rooms":    rooms,
		"members":  members,
		"sessions": s.sessions.Len(),
		"metrics":  s.metrics.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
