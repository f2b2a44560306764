package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "station":
		return stationTemplate, nil
	case "probe":
		return probeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const stationTemplate = `addr = ":2404"
common_address = 1
confirm_start = true
confirm_test = true
send_act_con = true
send_act_term = true
command_cause = 7

[[points]]
ioa = 1001
type = "M_SP_NA_1"
value = true

[[points]]
ioa = 1002
type = "M_DP_NA_1"
value = 2

[[points]]
ioa = 2001
type = "M_ME_NC_1"
value = 230.4
quality = ["NT"]

[[points]]
ioa = 2002
type = "M_ME_NB_1"
value = -120

[[points]]
ioa = 3001
type = "M_SP_TB_1"
value = false
timestamp = 2024-03-15T10:30:45Z
`

const probeTemplate = `id = "wireprobe"
addr = ":9040"
cors_origins = ["http://localhost:3000"]

[iec104]
connect_timeout_ms = 5000
start_timeout_ms = 5000
test_timeout_ms = 3000
stop_timeout_ms = 500
read_timeout_ms = 1000
collect_window_ms = 2000
max_objects = 500
max_frames = 20
`
