package tables

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
)

// OverallStatus summarizes every routing on a table.
type OverallStatus string

const (
	StatusNew       OverallStatus = "new"
	StatusPreparing OverallStatus = "preparing"
	StatusMixed     OverallStatus = "mixed"
	StatusReady     OverallStatus = "ready"
)

// SeatGroup holds one seat's routings in arrival order. Any routing after
// the first is a late arrival for that seat.
type SeatGroup struct {
	SeatID       *uuid.UUID       `json:"seat_id"`
	Routings     []models.Routing `json:"routings"`
	LateArrivals []uuid.UUID      `json:"late_arrivals,omitempty"`
}

// TableGroup is the derived per-table view of all current routings. It is
// never persisted; it is recomputed from the routing set on every read.
type TableGroup struct {
	TableID          uuid.UUID     `json:"table_id"`
	SeatIDs          []uuid.UUID   `json:"seat_ids"`
	Seats            []SeatGroup   `json:"seats"`
	EarliestRoutedAt time.Time     `json:"earliest_routed_at"`
	LatestRoutedAt   time.Time     `json:"latest_routed_at"`
	MaxElapsed       time.Duration `json:"max_elapsed"`
	MaxPriority      int           `json:"max_priority"`
	RecallTotal      int           `json:"recall_total"`
	OrderCount       int           `json:"order_count"`
	OverallStatus    OverallStatus `json:"overall_status"`
	IsOverdue        bool          `json:"is_overdue"`
	UrgencyScore     float64       `json:"urgency_score"`
}

// Options tunes thresholds and sorting. Zero weights with SortByUrgency set
// would collapse every score to 0, so build Options through DefaultOptions
// or OptionsFromConfig.
type Options struct {
	OverdueThreshold time.Duration
	SortByUrgency    bool

	WaitWeight     float64
	OrderWeight    float64
	PriorityWeight float64
	RecallWeight   float64
}

// DefaultOptions returns the stock thresholds and urgency weights.
func DefaultOptions() Options {
	return Options{
		OverdueThreshold: 15 * time.Minute,
		WaitWeight:       1.0,
		OrderWeight:      5.0,
		PriorityWeight:   10.0,
		RecallWeight:     15.0,
	}
}

// OptionsFromConfig maps the routing display configuration onto grouping
// options. The red threshold is the overdue cutoff.
func OptionsFromConfig(cfg config.RoutingConfig, sortByUrgency bool) Options {
	opts := DefaultOptions()
	if cfg.OverdueRed > 0 {
		opts.OverdueThreshold = cfg.OverdueRed
	}
	if cfg.UrgencyWaitWeight > 0 {
		opts.WaitWeight = cfg.UrgencyWaitWeight
	}
	if cfg.UrgencyOrderWeight > 0 {
		opts.OrderWeight = cfg.UrgencyOrderWeight
	}
	if cfg.UrgencyPriorityWeight > 0 {
		opts.PriorityWeight = cfg.UrgencyPriorityWeight
	}
	if cfg.UrgencyRecallWeight > 0 {
		opts.RecallWeight = cfg.UrgencyRecallWeight
	}
	opts.SortByUrgency = sortByUrgency
	return opts
}

// GroupByTable partitions routings by table and derives per-table summaries.
// It is a pure function of its inputs: same routing set, same clock, same
// options always produce the same groups in the same order, regardless of
// input ordering. Routings whose order carries no table reference are
// skipped; they belong to counter or takeout flows with no table to group.
func GroupByTable(routings []models.Routing, now time.Time, opts Options) []TableGroup {
	byTable := make(map[uuid.UUID][]models.Routing)
	for _, routing := range routings {
		if routing.Order == nil || routing.Order.TableID == nil {
			continue
		}
		tableID := *routing.Order.TableID
		byTable[tableID] = append(byTable[tableID], routing)
	}

	groups := make([]TableGroup, 0, len(byTable))
	for tableID, rows := range byTable {
		groups = append(groups, buildGroup(tableID, rows, now, opts))
	}

	sortGroups(groups, opts.SortByUrgency)
	return groups
}

func buildGroup(tableID uuid.UUID, rows []models.Routing, now time.Time, opts Options) TableGroup {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].RoutedAt.Equal(rows[j].RoutedAt) {
			return rows[i].RoutedAt.Before(rows[j].RoutedAt)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})

	group := TableGroup{
		TableID:          tableID,
		EarliestRoutedAt: rows[0].RoutedAt,
		LatestRoutedAt:   rows[len(rows)-1].RoutedAt,
	}

	orderIDs := make(map[uuid.UUID]bool)
	var (
		anyStarted     bool
		anyCompleted   bool
		anyIncomplete  bool
		anyUntouched   bool
		earliestActive *time.Time
	)
	for _, row := range rows {
		orderIDs[row.OrderID] = true
		group.RecallTotal += row.RecallCount
		if row.StartedAt != nil {
			anyStarted = true
		}
		if row.CompletedAt != nil {
			anyCompleted = true
			continue
		}
		anyIncomplete = true
		if row.StartedAt == nil {
			anyUntouched = true
		}
		if row.Priority > group.MaxPriority {
			group.MaxPriority = row.Priority
		}
		if earliestActive == nil || row.RoutedAt.Before(*earliestActive) {
			at := row.RoutedAt
			earliestActive = &at
		}
	}
	group.OrderCount = len(orderIDs)
	group.Seats = buildSeatGroups(rows)
	group.SeatIDs = seatIDsOf(group.Seats)

	// ready: everything bumped. new: nothing touched at all. mixed: the
	// table's routings are in differing states, which covers both
	// partially bumped tables and tables where some seats are underway
	// while others have not started. preparing: every routing underway.
	switch {
	case !anyIncomplete:
		group.OverallStatus = StatusReady
	case !anyStarted && !anyCompleted:
		group.OverallStatus = StatusNew
	case anyCompleted || anyUntouched:
		group.OverallStatus = StatusMixed
	default:
		group.OverallStatus = StatusPreparing
	}

	if earliestActive != nil {
		group.MaxElapsed = now.Sub(*earliestActive)
		if group.MaxElapsed < 0 {
			group.MaxElapsed = 0
		}
	}
	group.IsOverdue = opts.OverdueThreshold > 0 && group.MaxElapsed > opts.OverdueThreshold
	group.UrgencyScore = opts.WaitWeight*group.MaxElapsed.Minutes() +
		opts.OrderWeight*float64(group.OrderCount) +
		opts.PriorityWeight*float64(group.MaxPriority) +
		opts.RecallWeight*float64(group.RecallTotal)

	return group
}

// buildSeatGroups sub-partitions a table's routings by seat, keeping the
// table-wide routed_at order within each seat. The rows slice is already
// sorted by arrival, so each seat's second and later routings are its late
// arrivals.
func buildSeatGroups(rows []models.Routing) []SeatGroup {
	index := make(map[uuid.UUID]int)
	seats := make([]SeatGroup, 0, 4)
	var unseated *SeatGroup

	for _, row := range rows {
		seatID := seatIDOf(row)
		if seatID == nil {
			if unseated == nil {
				unseated = &SeatGroup{}
			}
			unseated.Routings = append(unseated.Routings, row)
			continue
		}
		pos, seen := index[*seatID]
		if !seen {
			id := *seatID
			seats = append(seats, SeatGroup{SeatID: &id})
			pos = len(seats) - 1
			index[*seatID] = pos
		}
		seats[pos].Routings = append(seats[pos].Routings, row)
	}

	for i := range seats {
		for _, row := range seats[i].Routings[1:] {
			seats[i].LateArrivals = append(seats[i].LateArrivals, row.ID)
		}
	}
	if unseated != nil {
		seats = append(seats, *unseated)
	}
	return seats
}

func seatIDsOf(seats []SeatGroup) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(seats))
	for _, seat := range seats {
		if seat.SeatID != nil {
			ids = append(ids, *seat.SeatID)
		}
	}
	return ids
}

func seatIDOf(row models.Routing) *uuid.UUID {
	if row.Order == nil {
		return nil
	}
	return row.Order.SeatID
}

func sortGroups(groups []TableGroup, byUrgency bool) {
	sort.SliceStable(groups, func(i, j int) bool {
		if byUrgency && groups[i].UrgencyScore != groups[j].UrgencyScore {
			return groups[i].UrgencyScore > groups[j].UrgencyScore
		}
		if !groups[i].EarliestRoutedAt.Equal(groups[j].EarliestRoutedAt) {
			return groups[i].EarliestRoutedAt.Before(groups[j].EarliestRoutedAt)
		}
		return groups[i].TableID.String() < groups[j].TableID.String()
	})
}
