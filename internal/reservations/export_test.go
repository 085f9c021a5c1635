package reservations

import "github.com/google/uuid"

// TicketCount returns how many tickets exist for a reservation
func (m *MemoryRepository) TicketCount(reservationID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tickets[reservationID]; ok {
		return 1
	}
	return 0
}
