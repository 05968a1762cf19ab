package monitoring

import (
	"os"
	"strconv"
	"strings"
	"syscall"
)

// sysstats.go - загрузка CPU по /proc/stat и занятость диска по statfs
//
// Процент CPU считается как доля не-idle времени между двумя
// последовательными замерами. На платформах без /proc
// sample возвращает ok=false и проверка CPU пропускается.

type cpuSampler struct {
	lastIdle  uint64
	lastTotal uint64
}

// sample возвращает загрузку CPU в процентах с момента прошлого вызова.
// Первый вызов только инициализирует счётчики и возвращает ok=false.
func (s *cpuSampler) sample() (percent float64, ok bool) {
	idle, total, err := readCPUTimes()
	if err != nil {
		return 0, false
	}

	defer func() {
		s.lastIdle = idle
		s.lastTotal = total
	}()

	if s.lastTotal == 0 || total <= s.lastTotal {
		return 0, false
	}

	idleDelta := float64(idle - s.lastIdle)
	totalDelta := float64(total - s.lastTotal)

	return (1 - idleDelta/totalDelta) * 100, true
}

// readCPUTimes читает агрегированную строку cpu из /proc/stat.
// Возвращает idle и суммарное время в тиках.
func readCPUTimes() (idle, total uint64, err error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}

		for i, field := range fields[1:] {
			value, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				continue
			}
			total += value
			if i == 3 { // четвёртое поле - idle
				idle = value
			}
		}
		break
	}

	return idle, total, nil
}

// diskUsage возвращает занятость корневой файловой системы в процентах.
// Доступное место считается по Bavail: блоки, зарезервированные
// для root, для процесса недоступны. При ошибке statfs ok=false
// и проверка диска пропускается.
func diskUsage() (percent float64, ok bool) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs("/", &fs); err != nil {
		return 0, false
	}
	if fs.Blocks == 0 {
		return 0, false
	}

	used := float64(fs.Blocks - fs.Bavail)
	return used / float64(fs.Blocks) * 100, true
}
