package jobs

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// TimestampLayout — формат времени в журналах задач (DD/MM/YYYY-HH:MM:SS).
const TimestampLayout = "02/01/2006-15:04:05"

// Пути журналов по умолчанию.
const (
	HeartbeatLogPath = "/tmp/crm_heartbeat_log.txt"
	LowStockLogPath  = "/tmp/low_stock_updates_log.txt"
	RemindersLogPath = "/tmp/order_reminders_log.txt"
)

// LineFormatter пишет запись как "<время> <сообщение>" без уровня и полей.
type LineFormatter struct{}

// Format реализует log.Formatter.
func (LineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return []byte(entry.Time.Format(TimestampLayout) + " " + entry.Message + "\n"), nil
}

// EventLog — журнал событий одной задачи, открытый на дозапись.
type EventLog struct {
	*log.Logger
	file *os.File
}

// OpenEventLog открывает (или создаёт) файл журнала в режиме append.
func OpenEventLog(path string) (*EventLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}

	logger := log.New()
	logger.SetOutput(file)
	logger.SetFormatter(LineFormatter{})
	logger.SetLevel(log.InfoLevel)

	return &EventLog{Logger: logger, file: file}, nil
}

// Close закрывает файл журнала.
func (l *EventLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
