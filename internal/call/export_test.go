package call

// LockCount reports how many per-channel lock entries are live.
func (m *Manager) LockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}
