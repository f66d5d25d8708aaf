package source

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/opsmind/monchat/config"
)

// history/event_history are the daily telemetry table prefixes; the actual
// table name is {prefix}_{YYYYMMDD}.
var oracleTablePrefixes = []string{"history", "event_history"}

// OracleSource collects daily performance/error rows from an Oracle instance,
// either a single endpoint or a RAC address list with load balancing and
// failover handled by the connect descriptor.
type OracleSource struct {
	cfg    config.OracleConfig
	logger *log.Logger
}

func NewOracleSource(cfg config.OracleConfig, logger *log.Logger) *OracleSource {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORACLE] ", log.LstdFlags)
	}
	return &OracleSource{cfg: cfg, logger: logger}
}

func (s *OracleSource) Name() string { return "oracle" }

// Collect unions the history and event_history partitions for one date.
func (s *OracleSource) Collect(ctx context.Context, date string) ([]Row, error) {
	var rows []Row
	for _, prefix := range oracleTablePrefixes {
		rows = append(rows, s.FetchRowsByDate(ctx, prefix, date)...)
	}
	return rows, nil
}

// BuildRACDescriptor renders a TNS connect descriptor enumerating every
// cluster address, e.g.
//
//	(DESCRIPTION=(LOAD_BALANCE=on)(FAILOVER=on)
//	  (ADDRESS_LIST=(ADDRESS=(PROTOCOL=TCP)(HOST=h1)(PORT=1521))...)
//	  (CONNECT_DATA=(SERVICE_NAME=orcl)))
//
// LOAD_BALANCE lets the driver round-robin across the list; FAILOVER makes it
// try the next address when a connection attempt fails. The flags are
// independent.
func BuildRACDescriptor(protocol string, hosts []string, port int, serviceName string, loadBalance, failover bool) string {
	var addresses strings.Builder
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		fmt.Fprintf(&addresses, "(ADDRESS=(PROTOCOL=%s)(HOST=%s)(PORT=%d))", protocol, h, port)
	}
	return fmt.Sprintf("(DESCRIPTION=(LOAD_BALANCE=%s)(FAILOVER=%s)(ADDRESS_LIST=%s)(CONNECT_DATA=(SERVICE_NAME=%s)))",
		onOff(loadBalance), onOff(failover), addresses.String(), serviceName)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// connectString picks the topology from config: SINGLE uses a plain URL, RAC
// uses the address-list descriptor via the driver's JDBC-style form.
func (s *OracleSource) connectString() string {
	opts := map[string]string{}
	if s.cfg.ConnectTimeout > 0 {
		opts["TIMEOUT"] = strconv.Itoa(int(s.cfg.ConnectTimeout / time.Second))
	}
	if strings.EqualFold(s.cfg.Mode, "RAC") {
		desc := BuildRACDescriptor(s.cfg.Protocol, s.cfg.RACHosts, s.cfg.RACPort, s.cfg.ServiceName, s.cfg.LoadBalance, s.cfg.Failover)
		return go_ora.BuildJDBC(s.cfg.User, s.cfg.Password, desc, opts)
	}
	return go_ora.BuildUrl(s.cfg.Host, s.cfg.Port, s.cfg.ServiceName, s.cfg.User, s.cfg.Password, opts)
}

// connect opens and verifies a connection. Callers must Close it.
func (s *OracleSource) connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("oracle", s.connectString())
	if err != nil {
		return nil, fmt.Errorf("oracle open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("oracle connect: %w", err)
	}
	return db, nil
}

// FetchRowsByDate selects every row of {prefix}_{date}. Daily partitions roll,
// so a missing table or any other relational error means "no data for this
// date" and returns an empty result.
func (s *OracleSource) FetchRowsByDate(ctx context.Context, prefix, date string) []Row {
	timeout := s.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := s.connect(ctx)
	if err != nil {
		s.logger.Printf("warn: %v", err)
		return nil
	}
	defer db.Close()

	table := fmt.Sprintf("%s_%s", prefix, date)
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil
	}

	var out []Row
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil
		}
		fields := make([]Field, len(cols))
		for i, c := range cols {
			fields[i] = Field{Name: c, Value: renderValue(vals[i])}
		}
		out = append(out, Row{Kind: prefix, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil
	}
	return out
}

func renderValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
