// Package services – SyncService
//
// This file implements the SyncService, the reconciliation engine at the
// heart of the terminal. It decides, per commit, whether an order or payment
// goes straight to the backend or into the durable offline queue, allocates
// provisional transaction ids while disconnected, and drains the queue in
// dependency order (orders before payments, oldest first) once connectivity
// returns. Server-issued ids observed on any path feed the monotonic
// last-known id so provisional allocation never regresses.
//
// Service-level errors (e.g., ErrOfflineStoreUnavailable) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/looppos/terminal-sync/internal/client"
	"github.com/looppos/terminal-sync/internal/domain"
	"github.com/looppos/terminal-sync/internal/idgen"
	"github.com/looppos/terminal-sync/internal/printer"
	"github.com/looppos/terminal-sync/internal/repo"
	"github.com/looppos/terminal-sync/internal/scan"
	"github.com/looppos/terminal-sync/internal/session"
)

// Remote defines the backend contract required by SyncService.
// *client.Client satisfies it; tests substitute fakes.
type Remote interface {
	// LatestTransactionID returns the highest id the server has issued.
	LatestTransactionID(ctx context.Context) (string, error)

	// SubmitOrder sends an order and returns the server-assigned id.
	SubmitOrder(ctx context.Context, payload domain.OrderPayload) (string, error)

	// SubmitPayment records a payment against an existing transaction.
	SubmitPayment(ctx context.Context, payload domain.PaymentPayload) error

	// ListTransactions returns the full backend journal.
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)

	// SuspendTransactions marks the given transactions suspended server-side.
	SuspendTransactions(ctx context.Context, transactionIDs []string) error

	// FinishedGoods returns the sellable items with their ingredient lists.
	FinishedGoods(ctx context.Context) ([]client.FinishedGood, error)

	// StockLevels returns current raw material quantities.
	StockLevels(ctx context.Context) ([]client.StockItem, error)

	// UpdateStock replaces raw material quantities.
	UpdateStock(ctx context.Context, items []client.StockItem) error
}

// Connectivity is the slice of the network monitor the service depends on.
// IsOnline is the cached flag for display; CheckNow performs a live probe
// and is what every commit and drain decision is based on.
type Connectivity interface {
	IsOnline() bool
	CheckNow(ctx context.Context) bool
}

// SyncService routes commits between the online and offline paths and
// reconciles the offline queue with the backend.
//
// DB may be nil when the embedded store could not be opened; the service
// then runs degraded: online commits work, anything needing local
// persistence returns ErrOfflineStoreUnavailable.
type SyncService struct {
	// DB is the GORM handle for the embedded queue store, or nil in
	// degraded mode.
	DB *gorm.DB
	// Remote is the backend API client.
	Remote Remote
	// Net reports and probes backend reachability.
	Net Connectivity
	// Alloc issues provisional transaction ids.
	Alloc *idgen.Allocator
	// Printer receives one docket per completed commit.
	Printer printer.Printer
	// Operator identifies this till on dockets and logs.
	Operator session.Context
	// Rates are the tax rates applied to commits.
	Rates session.Rates

	// draining serializes queue drains; concurrent triggers coalesce.
	draining atomic.Bool
}

// NewSyncService constructs a SyncService. A nil prn disables printing.
func NewSyncService(db *gorm.DB, remote Remote, net Connectivity, alloc *idgen.Allocator, prn printer.Printer, op session.Context, rates session.Rates) *SyncService {
	if prn == nil {
		prn = printer.Nop{}
	}
	return &SyncService{
		DB:       db,
		Remote:   remote,
		Net:      net,
		Alloc:    alloc,
		Printer:  prn,
		Operator: op,
		Rates:    rates,
	}
}

// CommitResult reports the outcome of an order or payment commit.
type CommitResult struct {
	// TransactionID is the server id (online) or provisional id (offline).
	TransactionID string `json:"transactionID"`
	// Offline is true when the commit was queued rather than submitted.
	Offline bool `json:"offline"`
	// Total is the charged amount, tax included.
	Total float64 `json:"total"`
	// Tax is the tax portion of Total.
	Tax float64 `json:"tax"`
	// InventoryFollowUp is true when stock was not decremented and needs a
	// manual adjustment once the backend is reachable.
	InventoryFollowUp bool `json:"inventoryFollowUp,omitempty"`
	// PrintErr carries a docket delivery failure. The commit itself stands.
	PrintErr error `json:"-"`
}

// SyncReport summarizes one drain pass over the offline queue.
type SyncReport struct {
	// Synced counts entries accepted by the server and removed.
	Synced int `json:"synced"`
	// Deferred counts payments skipped because their order has not synced.
	Deferred int `json:"deferred"`
	// Rejected counts entries the server refused permanently this pass.
	Rejected int `json:"rejected"`
	// Remaining is the queue depth after the pass, rejected included.
	Remaining int64 `json:"remaining"`
	// Offline is true when the pass aborted because the probe failed.
	Offline bool `json:"offline"`
	// AlreadyRunning is true when another drain held the lock.
	AlreadyRunning bool `json:"alreadyRunning"`
}

// SyncStatus is the terminal's reconciliation state for display.
type SyncStatus struct {
	StationID         string `json:"stationID"`
	Online            bool   `json:"online"`
	Pending           int64  `json:"pending"`
	Rejected          int64  `json:"rejected"`
	Cached            int64  `json:"cached"`
	LastTransactionID string `json:"lastTransactionID"`
	LastSyncTime      string `json:"lastSyncTime"`
}

// CommitOrder finalizes the current order. Online, it decrements stock,
// submits the order, and records the server id; offline, it allocates a
// provisional id and queues the order durably. The docket is printed either
// way; a print failure is reported in the result, never as a commit error.
//
// An online submission that fails does not fall back to the queue: by the
// time SubmitOrder runs the stock write may already have landed, and a later
// drain of a queued copy would decrement it again. The error is returned
// and the operator retries.
func (s *SyncService) CommitOrder(ctx context.Context, order session.Order) (*CommitResult, error) {
	if len(order.Items) == 0 {
		return nil, ErrNoItems
	}
	if order.PaymentMethod == "" {
		return nil, ErrNoPaymentMethod
	}

	now := time.Now().UTC()
	res := &CommitResult{
		Total: order.Total(s.Rates),
		Tax:   order.Tax(s.Rates),
	}
	payload := domain.OrderPayload{
		Items:         order.Items,
		Total:         res.Total,
		PaymentMethod: order.PaymentMethod,
		Date:          now,
	}

	if s.Net.CheckNow(ctx) {
		if err := s.decrementStock(ctx, order.Items); err != nil {
			syncCommits.WithLabelValues("order", "error").Inc()
			return nil, err
		}
		serverID, err := s.Remote.SubmitOrder(ctx, payload)
		if err != nil {
			syncCommits.WithLabelValues("order", "error").Inc()
			return nil, err
		}
		if _, err := s.recordServerID(ctx, serverID); err != nil {
			log.Warn().Err(err).Str("transaction_id", serverID).Msg("failed to record server id")
		}
		res.TransactionID = serverID
		syncCommits.WithLabelValues("order", "online").Inc()
	} else {
		if s.DB == nil {
			return nil, ErrOfflineStoreUnavailable
		}
		offlineID, err := s.Alloc.NextOffline(ctx)
		if err != nil {
			syncCommits.WithLabelValues("order", "error").Inc()
			return nil, err
		}
		payload.TransactionID = offlineID
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		entry := &domain.PendingOrder{
			LocalID:              domain.NewLocalID(now),
			OfflineTransactionID: offlineID,
			Payload:              string(body),
			CreatedAt:            now,
		}
		if err := repo.EnqueueOrder(ctx, s.DB, entry); err != nil {
			syncCommits.WithLabelValues("order", "error").Inc()
			return nil, err
		}
		res.TransactionID = offlineID
		res.Offline = true
		res.InventoryFollowUp = true
		syncCommits.WithLabelValues("order", "offline").Inc()
		s.refreshPendingGauge(ctx)
		log.Info().
			Str("transaction_id", offlineID).
			Str("station_id", s.Operator.StationID).
			Msg("order queued offline")
	}

	res.PrintErr = s.printDocket(ctx, printer.DocketOrder, res.TransactionID, order, res)
	return res, nil
}

// CommitPayment records a payment against transactionID, which may be a
// provisional id from an earlier offline order. Offline payments are queued;
// the drain rewrites a provisional reference to the server id once the
// paired order has synced.
func (s *SyncService) CommitPayment(ctx context.Context, transactionID string, order session.Order) (*CommitResult, error) {
	if transactionID == "" {
		return nil, ErrNoTransactionID
	}
	if len(order.Items) == 0 {
		return nil, ErrNoItems
	}
	if order.PaymentMethod == "" {
		return nil, ErrNoPaymentMethod
	}

	now := time.Now().UTC()
	res := &CommitResult{
		TransactionID: transactionID,
		Total:         order.Total(s.Rates),
		Tax:           order.Tax(s.Rates),
	}
	payload := domain.PaymentPayload{
		TransactionID: transactionID,
		Total:         res.Total,
		PaymentMethod: order.PaymentMethod,
		Items:         order.Items,
	}

	if s.Net.CheckNow(ctx) {
		if err := s.Remote.SubmitPayment(ctx, payload); err != nil {
			syncCommits.WithLabelValues("payment", "error").Inc()
			return nil, err
		}
		syncCommits.WithLabelValues("payment", "online").Inc()
	} else {
		if s.DB == nil {
			return nil, ErrOfflineStoreUnavailable
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		entry := &domain.PendingPayment{
			LocalID:       domain.NewLocalID(now),
			TransactionID: transactionID,
			Payload:       string(body),
			CreatedAt:     now,
		}
		if err := repo.EnqueuePayment(ctx, s.DB, entry); err != nil {
			syncCommits.WithLabelValues("payment", "error").Inc()
			return nil, err
		}
		res.Offline = true
		syncCommits.WithLabelValues("payment", "offline").Inc()
		s.refreshPendingGauge(ctx)
		log.Info().
			Str("transaction_id", transactionID).
			Str("station_id", s.Operator.StationID).
			Msg("payment queued offline")
	}

	res.PrintErr = s.printDocket(ctx, printer.DocketPaid, transactionID, order, res)
	return res, nil
}

// Drain pushes the offline queue to the backend: orders first, then
// payments, each oldest first. One failing entry never blocks the rest.
// Entries refused with a 4xx are marked rejected and left for the operator;
// transport failures and 5xx responses stay queued for the next pass.
//
// Only one drain runs at a time. A second caller gets an AlreadyRunning
// report immediately rather than waiting.
func (s *SyncService) Drain(ctx context.Context) (*SyncReport, error) {
	if s.DB == nil {
		return nil, ErrOfflineStoreUnavailable
	}
	if !s.draining.CompareAndSwap(false, true) {
		syncRuns.WithLabelValues("busy").Inc()
		return &SyncReport{AlreadyRunning: true}, nil
	}
	defer s.draining.Store(false)

	if !s.Net.CheckNow(ctx) {
		syncRuns.WithLabelValues("offline").Inc()
		return &SyncReport{Offline: true}, nil
	}

	start := time.Now()
	report := &SyncReport{}

	// Provisional ids resolved to server ids during this pass.
	remap := make(map[string]string)

	orders, err := repo.ListPendingOrders(ctx, s.DB, false)
	if err != nil {
		return nil, err
	}
	for _, entry := range orders {
		s.drainOrder(ctx, entry, remap, report)
	}

	payments, err := repo.ListPendingPayments(ctx, s.DB, false)
	if err != nil {
		return nil, err
	}
	for _, entry := range payments {
		s.drainPayment(ctx, entry, remap, report)
	}

	report.Remaining, err = repo.CountPending(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	syncPending.Set(float64(report.Remaining))

	rejected, err := repo.CountRejected(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	// The sync point is reached when nothing retryable is left; rejected
	// entries need operator action and do not hold the clock back.
	if report.Remaining-rejected == 0 {
		now := time.Now().UTC()
		if err := repo.PutMeta(ctx, s.DB, domain.MetaLastSyncTime, now.Format(time.RFC3339), now); err != nil {
			log.Warn().Err(err).Msg("failed to record last sync time")
		}
		syncRuns.WithLabelValues("complete").Inc()
	} else {
		syncRuns.WithLabelValues("partial").Inc()
	}
	syncDuration.Observe(time.Since(start).Seconds())

	log.Info().
		Int("synced", report.Synced).
		Int("deferred", report.Deferred).
		Int("rejected", report.Rejected).
		Int64("remaining", report.Remaining).
		Msg("queue drain finished")
	return report, nil
}

// drainOrder submits one queued order. On success the entry is removed, the
// offline→server id mapping is recorded in the journal mirror, and any queued
// payments referencing the provisional id are rewritten to the server id.
func (s *SyncService) drainOrder(ctx context.Context, entry domain.PendingOrder, remap map[string]string, report *SyncReport) {
	var payload domain.OrderPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		s.markOrder(ctx, entry.LocalID, "corrupt payload: "+err.Error(), true, report)
		return
	}

	serverID, err := s.Remote.SubmitOrder(ctx, payload)
	if err != nil {
		s.markOrder(ctx, entry.LocalID, err.Error(), client.IsPermanent(err), report)
		return
	}

	if _, err := s.recordServerID(ctx, serverID); err != nil {
		log.Warn().Err(err).Str("transaction_id", serverID).Msg("failed to record server id")
	}

	now := time.Now().UTC()
	synced := domain.Transaction{
		TransactionID:     serverID,
		Items:             toTransactionItems(payload.Items),
		Total:             payload.Total,
		PaymentMethod:     payload.PaymentMethod,
		Date:              payload.Date,
		OrderPunched:      domain.OrderPunchedYes,
		PaidStatus:        domain.PaidStatusNotPaid,
		TransactionStatus: domain.StatusProcessed,
	}
	if err := repo.RecordSyncedTransaction(ctx, s.DB, entry.OfflineTransactionID, synced, now); err != nil {
		log.Warn().Err(err).
			Str("offline_id", entry.OfflineTransactionID).
			Str("transaction_id", serverID).
			Msg("failed to record id remap")
	}
	remap[entry.OfflineTransactionID] = serverID

	if err := repo.RemovePendingOrder(ctx, s.DB, entry.LocalID); err != nil {
		log.Warn().Err(err).Str("local_id", entry.LocalID).Msg("failed to remove synced order")
	}
	report.Synced++
	syncDrained.WithLabelValues("order", "synced").Inc()
	log.Info().
		Str("offline_id", entry.OfflineTransactionID).
		Str("transaction_id", serverID).
		Msg("offline order synced")
}

// drainPayment submits one queued payment, first resolving a provisional
// transaction reference through the current pass's remap or the journal
// mirror. A payment whose order is still queued is deferred, not failed.
func (s *SyncService) drainPayment(ctx context.Context, entry domain.PendingPayment, remap map[string]string, report *SyncReport) {
	var payload domain.PaymentPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		s.markPayment(ctx, entry.LocalID, "corrupt payload: "+err.Error(), true, report)
		return
	}

	serverID, ok := remap[entry.TransactionID]
	if !ok {
		// A mapping from an earlier drain may exist in the mirror.
		if cached, err := repo.FindByOfflineID(ctx, s.DB, entry.TransactionID); err == nil {
			serverID = cached.TransactionID
			ok = true
		}
	}
	if ok && serverID != entry.TransactionID {
		payload.TransactionID = serverID
		body, err := json.Marshal(payload)
		if err != nil {
			s.markPayment(ctx, entry.LocalID, "corrupt payload: "+err.Error(), true, report)
			return
		}
		if err := repo.RewritePaymentTransactionID(ctx, s.DB, entry.LocalID, serverID, string(body)); err != nil {
			log.Warn().Err(err).Str("local_id", entry.LocalID).Msg("failed to rewrite payment reference")
			return
		}
	} else if !ok {
		pending, err := repo.HasPendingOrderWithOfflineID(ctx, s.DB, entry.TransactionID)
		if err == nil && pending {
			// The paired order is still queued (its submit failed this
			// pass). Keep the payment until the order lands.
			report.Deferred++
			syncDrained.WithLabelValues("payment", "deferred").Inc()
			return
		}
	}

	if err := s.Remote.SubmitPayment(ctx, payload); err != nil {
		s.markPayment(ctx, entry.LocalID, err.Error(), client.IsPermanent(err), report)
		return
	}
	if err := repo.RemovePendingPayment(ctx, s.DB, entry.LocalID); err != nil {
		log.Warn().Err(err).Str("local_id", entry.LocalID).Msg("failed to remove synced payment")
	}
	report.Synced++
	syncDrained.WithLabelValues("payment", "synced").Inc()
}

// markOrder records a failed order attempt and updates drain accounting.
func (s *SyncService) markOrder(ctx context.Context, localID, cause string, permanent bool, report *SyncReport) {
	if err := repo.MarkOrderAttempt(ctx, s.DB, localID, cause, permanent); err != nil {
		log.Warn().Err(err).Str("local_id", localID).Msg("failed to record order attempt")
	}
	if permanent {
		report.Rejected++
		syncDrained.WithLabelValues("order", "rejected").Inc()
		log.Error().Str("local_id", localID).Str("cause", cause).Msg("order rejected by backend")
	} else {
		syncDrained.WithLabelValues("order", "retry").Inc()
		log.Warn().Str("local_id", localID).Str("cause", cause).Msg("order sync deferred to next pass")
	}
}

// markPayment records a failed payment attempt and updates drain accounting.
func (s *SyncService) markPayment(ctx context.Context, localID, cause string, permanent bool, report *SyncReport) {
	if err := repo.MarkPaymentAttempt(ctx, s.DB, localID, cause, permanent); err != nil {
		log.Warn().Err(err).Str("local_id", localID).Msg("failed to record payment attempt")
	}
	if permanent {
		report.Rejected++
		syncDrained.WithLabelValues("payment", "rejected").Inc()
		log.Error().Str("local_id", localID).Str("cause", cause).Msg("payment rejected by backend")
	} else {
		syncDrained.WithLabelValues("payment", "retry").Inc()
		log.Warn().Str("local_id", localID).Str("cause", cause).Msg("payment sync deferred to next pass")
	}
}

// RefreshJournal fetches the full backend journal and rebuilds the local
// mirror, advancing the last-known id to the highest id observed. It returns
// the number of records cached. Requires connectivity.
func (s *SyncService) RefreshJournal(ctx context.Context) (int, error) {
	if !s.Net.CheckNow(ctx) {
		return 0, ErrBackendUnavailable
	}
	txs, err := s.Remote.ListTransactions(ctx)
	if err != nil {
		return 0, err
	}
	if max := client.MaxTransactionID(txs); max != "" {
		if _, err := s.recordServerID(ctx, max); err != nil {
			log.Warn().Err(err).Str("transaction_id", max).Msg("failed to record server id")
		}
	}
	if s.DB == nil {
		return len(txs), nil
	}
	return repo.ReplaceCache(ctx, s.DB, txs, time.Now().UTC())
}

// Journal returns a page of the transaction journal: live from the backend
// when reachable (refreshing the mirror as a side effect), otherwise from
// the local mirror. fromCache reports which source served the page.
func (s *SyncService) Journal(ctx context.Context, page, pageSize int) (items []domain.Transaction, total int64, fromCache bool, err error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if s.Net.CheckNow(ctx) {
		txs, err := s.Remote.ListTransactions(ctx)
		if err == nil {
			if max := client.MaxTransactionID(txs); max != "" {
				if _, rerr := s.recordServerID(ctx, max); rerr != nil {
					log.Warn().Err(rerr).Msg("failed to record server id")
				}
			}
			if s.DB != nil {
				if _, cerr := repo.ReplaceCache(ctx, s.DB, txs, time.Now().UTC()); cerr != nil {
					log.Warn().Err(cerr).Msg("failed to rebuild journal mirror")
				}
			}
			return pageOf(txs, offset, pageSize), int64(len(txs)), false, nil
		}
		log.Warn().Err(err).Msg("journal fetch failed, serving mirror")
	}

	if s.DB == nil {
		return nil, 0, false, ErrOfflineStoreUnavailable
	}
	total, err = repo.CountCached(ctx, s.DB)
	if err != nil {
		return nil, 0, true, err
	}
	items, err = repo.ListCached(ctx, s.DB, offset, pageSize)
	return items, total, true, err
}

// Recall finds the transaction a scanned or typed code refers to, searching
// the live journal when online and the mirror otherwise. Codes are matched
// tolerantly: "110" recalls "000110".
func (s *SyncService) Recall(ctx context.Context, code string) (*domain.Transaction, error) {
	if code == "" {
		return nil, ErrNoTransactionID
	}

	if s.Net.CheckNow(ctx) {
		txs, err := s.Remote.ListTransactions(ctx)
		if err == nil {
			if t, ok := scan.FindTransaction(txs, code); ok {
				return t, nil
			}
			return nil, ErrTransactionNotFound
		}
		log.Warn().Err(err).Msg("journal fetch failed, recalling from mirror")
	}

	if s.DB == nil {
		return nil, ErrOfflineStoreUnavailable
	}
	// The mirror is keyed by exact id; try that before a tolerant scan.
	if t, err := repo.GetCached(ctx, s.DB, code); err == nil {
		return t, nil
	}
	txs, err := repo.ListCached(ctx, s.DB, 0, -1)
	if err != nil {
		return nil, err
	}
	if t, ok := scan.FindTransaction(txs, code); ok {
		return t, nil
	}
	return nil, ErrTransactionNotFound
}

// Suspend parks the given transactions server-side so another till can pick
// them up. Suspension mutates shared backend state and is online-only.
func (s *SyncService) Suspend(ctx context.Context, transactionIDs []string) error {
	if len(transactionIDs) == 0 {
		return ErrNoTransactionID
	}
	if !s.Net.CheckNow(ctx) {
		return ErrBackendUnavailable
	}
	if err := s.Remote.SuspendTransactions(ctx, transactionIDs); err != nil {
		return err
	}
	if _, err := s.RefreshJournal(ctx); err != nil {
		log.Warn().Err(err).Msg("journal refresh after suspend failed")
	}
	return nil
}

// PendingCount returns the queue depth, rejected entries included.
func (s *SyncService) PendingCount(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, ErrOfflineStoreUnavailable
	}
	return repo.CountPending(ctx, s.DB)
}

// Status assembles the terminal's reconciliation state for display. The
// online flag is the monitor's cached value; Status is a read, not a probe.
func (s *SyncService) Status(ctx context.Context) (*SyncStatus, error) {
	st := &SyncStatus{
		StationID: s.Operator.StationID,
		Online:    s.Net.IsOnline(),
	}
	if s.DB == nil {
		return st, nil
	}

	var err error
	if st.Pending, err = repo.CountPending(ctx, s.DB); err != nil {
		return nil, err
	}
	if st.Rejected, err = repo.CountRejected(ctx, s.DB); err != nil {
		return nil, err
	}
	if st.Cached, err = repo.CountCached(ctx, s.DB); err != nil {
		return nil, err
	}
	if st.LastTransactionID, err = s.Alloc.LastKnown(ctx); err != nil {
		return nil, err
	}
	st.LastSyncTime, err = repo.GetMeta(ctx, s.DB, domain.MetaLastSyncTime)
	if err != nil {
		st.LastSyncTime = domain.SyncTimeNever
	}
	return st, nil
}

// Bootstrap aligns the terminal with the backend at startup: it records the
// server's latest issued id and primes the journal mirror. A failure leaves
// the terminal on its persisted state and is not fatal.
func (s *SyncService) Bootstrap(ctx context.Context) error {
	if !s.Net.CheckNow(ctx) {
		return ErrBackendUnavailable
	}
	latest, err := s.Remote.LatestTransactionID(ctx)
	if err != nil {
		return err
	}
	if _, err := s.recordServerID(ctx, latest); err != nil {
		return err
	}
	if s.DB != nil {
		if _, err := s.RefreshJournal(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunAutoSync drains the queue whenever the monitor reports an
// offline→online transition. It blocks until ctx is cancelled; run it in
// its own goroutine next to the monitor.
func (s *SyncService) RunAutoSync(ctx context.Context, transitions <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-transitions:
			if !ok {
				return
			}
			if !online {
				continue
			}
			if _, err := s.Drain(ctx); err != nil {
				log.Error().Err(err).Msg("automatic queue drain failed")
			}
		}
	}
}

// recordServerID feeds a server-issued id into the allocator when a store is
// available; degraded mode tracks nothing.
func (s *SyncService) recordServerID(ctx context.Context, serverID string) (bool, error) {
	if s.DB == nil || serverID == "" {
		return false, nil
	}
	return s.Alloc.RecordServerID(ctx, serverID)
}

// refreshPendingGauge updates the queue depth gauge after an enqueue.
func (s *SyncService) refreshPendingGauge(ctx context.Context) {
	if n, err := repo.CountPending(ctx, s.DB); err == nil {
		syncPending.Set(float64(n))
	}
}

// printDocket issues the receipt for a completed commit.
func (s *SyncService) printDocket(ctx context.Context, kind, transactionID string, order session.Order, res *CommitResult) error {
	d := printer.Docket{
		Type:          kind,
		TransactionID: transactionID,
		Items:         order.Items,
		Subtotal:      order.Subtotal(),
		Tax:           res.Tax,
		Total:         res.Total,
		PaymentMethod: order.PaymentMethod,
		Offline:       res.Offline,
		StationID:     s.Operator.StationID,
		Cashier:       s.Operator.Cashier,
		IssuedAt:      time.Now().UTC(),
	}
	if err := s.Printer.Print(ctx, d); err != nil {
		log.Warn().Err(err).Str("transaction_id", transactionID).Msg("docket print failed")
		return err
	}
	return nil
}

// toTransactionItems converts order lines to the backend's stored item shape.
func toTransactionItems(items []domain.LineItem) []domain.TransactionItem {
	out := make([]domain.TransactionItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.TransactionItem{
			ItemID:   domain.ItemID(it.ID),
			ItemName: it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}
	return out
}

// pageOf slices txs for the requested page without copying the whole list.
func pageOf(txs []domain.Transaction, offset, limit int) []domain.Transaction {
	if offset >= len(txs) {
		return []domain.Transaction{}
	}
	end := offset + limit
	if end > len(txs) {
		end = len(txs)
	}
	return txs[offset:end]
}
