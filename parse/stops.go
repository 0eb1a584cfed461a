package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"tidbyt.dev/transit/storage"
)

type StopCSV struct {
	Code    int     `csv:"code"`
	Address string  `csv:"address"`
	Lat     float64 `csv:"latitude"`
	Lon     float64 `csv:"longitude"`
}

func ParseStops(writer storage.NetworkWriter, data io.Reader) (map[int]bool, error) {
	stopCsv := []*StopCSV{}
	if err := gocsv.UnmarshalCSV(newCSVReader(data), &stopCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling stops csv: %w", err)
	}

	stopCodes := map[int]bool{}
	for _, st := range stopCsv {
		if stopCodes[st.Code] {
			return nil, fmt.Errorf("repeated stop code %d", st.Code)
		}
		stopCodes[st.Code] = true

		if st.Lat < -90 || st.Lat > 90 || st.Lon < -180 || st.Lon > 180 {
			return nil, fmt.Errorf("invalid coordinates for stop %d", st.Code)
		}

		err := writer.WriteStop(&storage.Stop{
			Code:    st.Code,
			Address: st.Address,
			Lat:     st.Lat,
			Lon:     st.Lon,
		})
		if err != nil {
			return nil, fmt.Errorf("writing stop %d: %w", st.Code, err)
		}
	}

	return stopCodes, nil
}
