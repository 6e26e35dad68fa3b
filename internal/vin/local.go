package vin

import "time"

// Local fallback tables. Coverage is intentionally narrow: common WMI
// prefixes seen in collision estimates, enough to produce a usable
// make/region when the remote decoder is unreachable.

type wmiEntry struct {
	manufacturer string
	make         string
	region       string
}

var wmiTable = map[string]wmiEntry{
	"1HG": {"Honda of America", "Honda", "North America"},
	"1FA": {"Ford Motor Company", "Ford", "North America"},
	"1FT": {"Ford Motor Company", "Ford", "North America"},
	"1G1": {"General Motors", "Chevrolet", "North America"},
	"1GC": {"General Motors", "Chevrolet", "North America"},
	"1C4": {"Stellantis", "Chrysler", "North America"},
	"2HG": {"Honda of Canada", "Honda", "North America"},
	"2T1": {"Toyota Canada", "Toyota", "North America"},
	"3VW": {"Volkswagen de Mexico", "Volkswagen", "North America"},
	"4T1": {"Toyota Motor Manufacturing", "Toyota", "North America"},
	"5YJ": {"Tesla", "Tesla", "North America"},
	"JHM": {"Honda Motor Co", "Honda", "Asia"},
	"JTD": {"Toyota Motor Corp", "Toyota", "Asia"},
	"JN1": {"Nissan Motor Co", "Nissan", "Asia"},
	"KMH": {"Hyundai Motor Co", "Hyundai", "Asia"},
	"KNA": {"Kia Motors", "Kia", "Asia"},
	"WBA": {"BMW AG", "BMW", "Europe"},
	"WDB": {"Mercedes-Benz", "Mercedes-Benz", "Europe"},
	"WVW": {"Volkswagen AG", "Volkswagen", "Europe"},
	"WAU": {"Audi AG", "Audi", "Europe"},
	"YV1": {"Volvo Cars", "Volvo", "Europe"},
}

// yearCodes maps the position-10 model year code. Codes repeat on a
// 30-year cycle; this table covers the 2010-2039 window, which is the
// range of vehicles a collision shop actually sees.
var yearCodes = map[byte]int{
	'A': 2010, 'B': 2011, 'C': 2012, 'D': 2013, 'E': 2014,
	'F': 2015, 'G': 2016, 'H': 2017, 'J': 2018, 'K': 2019,
	'L': 2020, 'M': 2021, 'N': 2022, 'P': 2023, 'R': 2024,
	'S': 2025, 'T': 2026, 'V': 2027, 'W': 2028, 'X': 2029,
	'Y': 2030,
	'1': 2031, '2': 2032, '3': 2033, '4': 2034, '5': 2035,
	'6': 2036, '7': 2037, '8': 2038, '9': 2039,
}

// decodeLocal produces a best-effort descriptor from the pattern tables
func decodeLocal(vin string) *Descriptor {
	desc := &Descriptor{
		VIN:    vin,
		Source: SourceLocal,
	}

	if entry, ok := wmiTable[vin[:3]]; ok {
		desc.Manufacturer = entry.manufacturer
		desc.Make = entry.make
		desc.Region = entry.region
		desc.Confidence = 0.6
	} else {
		desc.Source = SourceUnknown
		desc.Confidence = 0.1
		return desc
	}

	if year, ok := yearCodes[vin[9]]; ok {
		// Year codes repeat every 30 years; a decoded year in the future
		// belongs to the previous cycle.
		if year > time.Now().Year()+1 {
			year -= 30
		}
		desc.Year = year
	}

	return desc
}
