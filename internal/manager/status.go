package manager

import (
	"sort"
	"time"

	"mlxd/pkg/types"
)

// Status builds a detailed status response for GET /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		ModelsDir:        m.cfg.Registry.Dir(),
		ArtifactCount:    len(m.cfg.Registry.Artifacts()),
		ConversionActive: m.convertActive,
		ConversionsTotal: m.conversions,
		GenerationsTotal: m.generations,
		LastError:        m.lastErr,
		UptimeSeconds:    int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix:   time.Now().Unix(),
	}
	resp.Runtimes = make([]types.RuntimeStatus, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		resp.Runtimes = append(resp.Runtimes, types.RuntimeStatus{
			ModelPath: rt.ModelPath,
			State:     string(rt.State),
			LastUsed:  rt.LastUsed.Unix(),
			Port:      rt.Port,
			PID:       rt.PID,
			QueueLen:  len(rt.queueCh),
			Inflight:  len(rt.genCh),
		})
	}
	sort.Slice(resp.Runtimes, func(i, j int) bool {
		return resp.Runtimes[i].ModelPath < resp.Runtimes[j].ModelPath
	})
	return resp
}
