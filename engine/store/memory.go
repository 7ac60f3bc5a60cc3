// Package store provides an in-memory engine.TxStore (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/assignia/staffing-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	assignments map[engine.AssignmentID]engine.AssignmentRecord
	works       map[engine.WorkID]engine.WorkRecord
	invoices    map[invoiceKey]engine.ClientMonthlyInvoice
	summaries   map[summaryKey]engine.SecretaryMonthlySummary
	clients     map[engine.ClientID]engine.Client
	secretaries map[engine.SecretaryID]engine.Secretary
	ranks       map[engine.RankID]engine.Rank

	// Insertion sequence, for the creation-order tiebreak in summaries.
	order map[engine.AssignmentID]int
	seq   int
}

type invoiceKey struct {
	ClientID engine.ClientID
	Month    string
}

type summaryKey struct {
	SecretaryID engine.SecretaryID
	Month       string
}

func NewMemory() *Memory {
	return &Memory{
		assignments: make(map[engine.AssignmentID]engine.AssignmentRecord),
		works:       make(map[engine.WorkID]engine.WorkRecord),
		invoices:    make(map[invoiceKey]engine.ClientMonthlyInvoice),
		summaries:   make(map[summaryKey]engine.SecretaryMonthlySummary),
		clients:     make(map[engine.ClientID]engine.Client),
		secretaries: make(map[engine.SecretaryID]engine.Secretary),
		ranks:       make(map[engine.RankID]engine.Rank),
		order:       make(map[engine.AssignmentID]int),
	}
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

func (m *Memory) CreateAssignment(_ context.Context, a engine.AssignmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAssignmentLocked(a)
}

func (m *Memory) createAssignmentLocked(a engine.AssignmentRecord) error {
	for _, existing := range m.assignments {
		if existing.Active() && existing.Key() == a.Key() && existing.TargetMonth.Equal(a.TargetMonth) {
			return &engine.DuplicateAssignmentError{Key: a.Key(), Month: a.TargetMonth}
		}
	}
	m.assignments[a.ID] = a
	m.seq++
	m.order[a.ID] = m.seq
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, id engine.AssignmentID) (*engine.AssignmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAssignmentLocked(id)
}

func (m *Memory) getAssignmentLocked(id engine.AssignmentID) (*engine.AssignmentRecord, error) {
	a, ok := m.assignments[id]
	if !ok || !a.Active() {
		return nil, engine.ErrAssignmentNotFound
	}
	out := a
	return &out, nil
}

func (m *Memory) ListAssignmentsByMonth(_ context.Context, month engine.Month) ([]engine.AssignmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAssignmentsByMonthLocked(month), nil
}

func (m *Memory) listAssignmentsByMonthLocked(month engine.Month) []engine.AssignmentRecord {
	var out []engine.AssignmentRecord
	for _, a := range m.assignments {
		if a.Active() && a.TargetMonth.Equal(month) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] < m.order[out[j].ID] })
	return out
}

func (m *Memory) ListAssignmentSummaries(_ context.Context, month engine.Month) ([]engine.AssignmentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAssignmentSummariesLocked(month), nil
}

func (m *Memory) listAssignmentSummariesLocked(month engine.Month) []engine.AssignmentSummary {
	rows := m.listAssignmentsByMonthLocked(month)
	out := make([]engine.AssignmentSummary, 0, len(rows))
	for _, a := range rows {
		out = append(out, engine.AssignmentSummary{
			AssignmentID:     a.ID,
			Key:              a.Key(),
			ClientName:       m.clients[a.ClientID].Name,
			SecretaryName:    m.secretaries[a.SecretaryID].Name,
			RankName:         m.ranks[a.RankID].Name,
			TargetMonth:      a.TargetMonth,
			ClientBasePay:    a.ClientBasePay,
			SecretaryBasePay: a.SecretaryBasePay,
			CreatedAt:        a.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ClientName != out[j].ClientName {
			return out[i].ClientName < out[j].ClientName
		}
		if out[i].SecretaryName != out[j].SecretaryName {
			return out[i].SecretaryName < out[j].SecretaryName
		}
		if out[i].RankName != out[j].RankName {
			return out[i].RankName < out[j].RankName
		}
		return m.order[out[i].AssignmentID] < m.order[out[j].AssignmentID]
	})
	return out
}

func (m *Memory) PresenceMonths(_ context.Context, key engine.ContinuityKey, upTo engine.Month) ([]engine.Month, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.presenceMonthsLocked(key, upTo), nil
}

func (m *Memory) presenceMonthsLocked(key engine.ContinuityKey, upTo engine.Month) []engine.Month {
	seen := make(map[int]engine.Month)
	for _, a := range m.assignments {
		if a.Active() && a.Key() == key && !a.TargetMonth.After(upTo) {
			seen[a.TargetMonth.Index()] = a.TargetMonth
		}
	}
	out := make([]engine.Month, 0, len(seen))
	for _, mo := range seen {
		out = append(out, mo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

func (m *Memory) ApplyIncentive(_ context.Context, clientID engine.ClientID, secretaryID engine.SecretaryID,
	month engine.Month, excludeRank engine.RankID, clientRate, secretaryRate decimal.Decimal) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyIncentiveLocked(clientID, secretaryID, month, excludeRank, clientRate, secretaryRate), nil
}

func (m *Memory) applyIncentiveLocked(clientID engine.ClientID, secretaryID engine.SecretaryID,
	month engine.Month, excludeRank engine.RankID, clientRate, secretaryRate decimal.Decimal) int {
	affected := 0
	for id, a := range m.assignments {
		if !a.Active() || a.ClientID != clientID || a.SecretaryID != secretaryID ||
			!a.TargetMonth.Equal(month) || a.RankID == excludeRank {
			continue
		}
		a.ClientIncentive = clientRate
		a.SecretaryIncentive = secretaryRate
		m.assignments[id] = a
		affected++
	}
	return affected
}

func (m *Memory) SoftDeleteAssignment(_ context.Context, id engine.AssignmentID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.softDeleteAssignmentLocked(id, at)
}

func (m *Memory) softDeleteAssignmentLocked(id engine.AssignmentID, at time.Time) error {
	a, ok := m.assignments[id]
	if !ok || !a.Active() {
		return engine.ErrAssignmentNotFound
	}
	a.DeletedAt = &at
	m.assignments[id] = a
	return nil
}

// =============================================================================
// WORK STORE
// =============================================================================

func (m *Memory) CreateWork(_ context.Context, w engine.WorkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.works[w.ID] = w
	return nil
}

func (m *Memory) GetWork(_ context.Context, id engine.WorkID) (*engine.WorkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getWorkLocked(id)
}

func (m *Memory) getWorkLocked(id engine.WorkID) (*engine.WorkRecord, error) {
	w, ok := m.works[id]
	if !ok || !w.Active() {
		return nil, engine.ErrWorkNotFound
	}
	out := w
	return &out, nil
}

func (m *Memory) UpdateWork(_ context.Context, w engine.WorkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateWorkLocked(w)
}

func (m *Memory) updateWorkLocked(w engine.WorkRecord) error {
	if _, ok := m.works[w.ID]; !ok {
		return engine.ErrWorkNotFound
	}
	m.works[w.ID] = w
	return nil
}

func (m *Memory) ListWorkByAssignment(_ context.Context, id engine.AssignmentID) ([]engine.WorkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listWorkByAssignmentLocked(id), nil
}

func (m *Memory) listWorkByAssignmentLocked(id engine.AssignmentID) []engine.WorkRecord {
	var out []engine.WorkRecord
	for _, w := range m.works {
		if w.Active() && w.AssignmentID == id {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].WorkDate.Equal(out[j].WorkDate) {
			return out[i].WorkDate.Before(out[j].WorkDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (m *Memory) ReplaceClientInvoice(_ context.Context, inv engine.ClientMonthlyInvoice) (engine.ClientMonthlyInvoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceClientInvoiceLocked(inv), nil
}

func (m *Memory) replaceClientInvoiceLocked(inv engine.ClientMonthlyInvoice) engine.ClientMonthlyInvoice {
	k := invoiceKey{ClientID: inv.ClientID, Month: inv.TargetMonth.String()}
	if existing, ok := m.invoices[k]; ok {
		// Replace totals, keep row identity.
		inv.ID = existing.ID
		inv.CreatedAt = existing.CreatedAt
	}
	m.invoices[k] = inv
	return inv
}

func (m *Memory) ReplaceSecretarySummary(_ context.Context, sum engine.SecretaryMonthlySummary) (engine.SecretaryMonthlySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceSecretarySummaryLocked(sum), nil
}

func (m *Memory) replaceSecretarySummaryLocked(sum engine.SecretaryMonthlySummary) engine.SecretaryMonthlySummary {
	k := summaryKey{SecretaryID: sum.SecretaryID, Month: sum.TargetMonth.String()}
	if existing, ok := m.summaries[k]; ok {
		sum.ID = existing.ID
		sum.CreatedAt = existing.CreatedAt
	}
	m.summaries[k] = sum
	return sum
}

func (m *Memory) GetClientInvoice(_ context.Context, clientID engine.ClientID, month engine.Month) (*engine.ClientMonthlyInvoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[invoiceKey{ClientID: clientID, Month: month.String()}]
	if !ok {
		return nil, engine.ErrSnapshotNotFound
	}
	out := inv
	return &out, nil
}

func (m *Memory) GetSecretarySummary(_ context.Context, secretaryID engine.SecretaryID, month engine.Month) (*engine.SecretaryMonthlySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum, ok := m.summaries[summaryKey{SecretaryID: secretaryID, Month: month.String()}]
	if !ok {
		return nil, engine.ErrSnapshotNotFound
	}
	out := sum
	return &out, nil
}

func (m *Memory) ListClientInvoices(_ context.Context, month engine.Month) ([]engine.ClientMonthlyInvoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.ClientMonthlyInvoice
	for k, inv := range m.invoices {
		if k.Month == month.String() {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (m *Memory) ListSecretarySummaries(_ context.Context, month engine.Month) ([]engine.SecretaryMonthlySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.SecretaryMonthlySummary
	for k, sum := range m.summaries {
		if k.Month == month.String() {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecretaryID < out[j].SecretaryID })
	return out, nil
}

// =============================================================================
// MASTER STORE
// =============================================================================

func (m *Memory) SaveClient(_ context.Context, c engine.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
	return nil
}

func (m *Memory) SaveSecretary(_ context.Context, s engine.Secretary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secretaries[s.ID] = s
	return nil
}

func (m *Memory) SaveRank(_ context.Context, r engine.Rank) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranks[r.ID] = r
	return nil
}

func (m *Memory) GetRank(_ context.Context, id engine.RankID) (*engine.Rank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRankLocked(id)
}

func (m *Memory) getRankLocked(id engine.RankID) (*engine.Rank, error) {
	r, ok := m.ranks[id]
	if !ok {
		return nil, engine.ErrRankNotFound
	}
	out := r
	return &out, nil
}

func (m *Memory) PMRankID(_ context.Context) (engine.RankID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pmRankIDLocked()
}

func (m *Memory) pmRankIDLocked() (engine.RankID, error) {
	for id, r := range m.ranks {
		if r.IsPM {
			return id, nil
		}
	}
	return "", engine.ErrPMRankUnset
}

// =============================================================================
// TRANSACTIONS - Snapshot and restore on error
// =============================================================================

// WithTx executes fn against a view of the store while holding the write
// lock; on error the pre-transaction state is restored.
func (m *Memory) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	assignments map[engine.AssignmentID]engine.AssignmentRecord
	works       map[engine.WorkID]engine.WorkRecord
	invoices    map[invoiceKey]engine.ClientMonthlyInvoice
	summaries   map[summaryKey]engine.SecretaryMonthlySummary
	clients     map[engine.ClientID]engine.Client
	secretaries map[engine.SecretaryID]engine.Secretary
	ranks       map[engine.RankID]engine.Rank
	order       map[engine.AssignmentID]int
	seq         int
}

func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		assignments: copyMap(m.assignments),
		works:       copyMap(m.works),
		invoices:    copyMap(m.invoices),
		summaries:   copyMap(m.summaries),
		clients:     copyMap(m.clients),
		secretaries: copyMap(m.secretaries),
		ranks:       copyMap(m.ranks),
		order:       copyMap(m.order),
		seq:         m.seq,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.assignments = s.assignments
	m.works = s.works
	m.invoices = s.invoices
	m.summaries = s.summaries
	m.clients = s.clients
	m.secretaries = s.secretaries
	m.ranks = s.ranks
	m.order = s.order
	m.seq = s.seq
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// txView routes Store calls to the parent's unlocked internals; WithTx holds
// the exclusive lock for the whole transaction.
type txView struct {
	parent *Memory
}

func (v *txView) CreateAssignment(_ context.Context, a engine.AssignmentRecord) error {
	return v.parent.createAssignmentLocked(a)
}

func (v *txView) GetAssignment(_ context.Context, id engine.AssignmentID) (*engine.AssignmentRecord, error) {
	return v.parent.getAssignmentLocked(id)
}

func (v *txView) ListAssignmentsByMonth(_ context.Context, month engine.Month) ([]engine.AssignmentRecord, error) {
	return v.parent.listAssignmentsByMonthLocked(month), nil
}

func (v *txView) ListAssignmentSummaries(_ context.Context, month engine.Month) ([]engine.AssignmentSummary, error) {
	return v.parent.listAssignmentSummariesLocked(month), nil
}

func (v *txView) PresenceMonths(_ context.Context, key engine.ContinuityKey, upTo engine.Month) ([]engine.Month, error) {
	return v.parent.presenceMonthsLocked(key, upTo), nil
}

func (v *txView) ApplyIncentive(_ context.Context, clientID engine.ClientID, secretaryID engine.SecretaryID,
	month engine.Month, excludeRank engine.RankID, clientRate, secretaryRate decimal.Decimal) (int, error) {
	return v.parent.applyIncentiveLocked(clientID, secretaryID, month, excludeRank, clientRate, secretaryRate), nil
}

func (v *txView) SoftDeleteAssignment(_ context.Context, id engine.AssignmentID, at time.Time) error {
	return v.parent.softDeleteAssignmentLocked(id, at)
}

func (v *txView) CreateWork(_ context.Context, w engine.WorkRecord) error {
	v.parent.works[w.ID] = w
	return nil
}

func (v *txView) GetWork(_ context.Context, id engine.WorkID) (*engine.WorkRecord, error) {
	return v.parent.getWorkLocked(id)
}

func (v *txView) UpdateWork(_ context.Context, w engine.WorkRecord) error {
	return v.parent.updateWorkLocked(w)
}

func (v *txView) ListWorkByAssignment(_ context.Context, id engine.AssignmentID) ([]engine.WorkRecord, error) {
	return v.parent.listWorkByAssignmentLocked(id), nil
}

func (v *txView) ReplaceClientInvoice(_ context.Context, inv engine.ClientMonthlyInvoice) (engine.ClientMonthlyInvoice, error) {
	return v.parent.replaceClientInvoiceLocked(inv), nil
}

func (v *txView) ReplaceSecretarySummary(_ context.Context, sum engine.SecretaryMonthlySummary) (engine.SecretaryMonthlySummary, error) {
	return v.parent.replaceSecretarySummaryLocked(sum), nil
}

func (v *txView) GetClientInvoice(_ context.Context, clientID engine.ClientID, month engine.Month) (*engine.ClientMonthlyInvoice, error) {
	inv, ok := v.parent.invoices[invoiceKey{ClientID: clientID, Month: month.String()}]
	if !ok {
		return nil, engine.ErrSnapshotNotFound
	}
	out := inv
	return &out, nil
}

func (v *txView) GetSecretarySummary(_ context.Context, secretaryID engine.SecretaryID, month engine.Month) (*engine.SecretaryMonthlySummary, error) {
	sum, ok := v.parent.summaries[summaryKey{SecretaryID: secretaryID, Month: month.String()}]
	if !ok {
		return nil, engine.ErrSnapshotNotFound
	}
	out := sum
	return &out, nil
}

func (v *txView) ListClientInvoices(ctx context.Context, month engine.Month) ([]engine.ClientMonthlyInvoice, error) {
	var out []engine.ClientMonthlyInvoice
	for k, inv := range v.parent.invoices {
		if k.Month == month.String() {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (v *txView) ListSecretarySummaries(ctx context.Context, month engine.Month) ([]engine.SecretaryMonthlySummary, error) {
	var out []engine.SecretaryMonthlySummary
	for k, sum := range v.parent.summaries {
		if k.Month == month.String() {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecretaryID < out[j].SecretaryID })
	return out, nil
}

func (v *txView) SaveClient(_ context.Context, c engine.Client) error {
	v.parent.clients[c.ID] = c
	return nil
}

func (v *txView) SaveSecretary(_ context.Context, s engine.Secretary) error {
	v.parent.secretaries[s.ID] = s
	return nil
}

func (v *txView) SaveRank(_ context.Context, r engine.Rank) error {
	v.parent.ranks[r.ID] = r
	return nil
}

func (v *txView) GetRank(_ context.Context, id engine.RankID) (*engine.Rank, error) {
	return v.parent.getRankLocked(id)
}

func (v *txView) PMRankID(_ context.Context) (engine.RankID, error) {
	return v.parent.pmRankIDLocked()
}
