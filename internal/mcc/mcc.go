// Package mcc maps merchant-category codes to their semantic groups.
package mcc

// Group is a semantic family of merchant-category codes. Group keys appear in
// user configuration as category-override targets.
type Group string

// Merchant-category groups, following the ISO 18245 range layout with a few
// frequently hit codes broken out into finer groups.
const (
	GroupAgricultural   Group = "agricultural_services"
	GroupContracted     Group = "contracted_services"
	GroupAirlines       Group = "airlines"
	GroupCarRental      Group = "car_rental"
	GroupLodging        Group = "lodging"
	GroupTransportation Group = "transportation"
	GroupUtilities      Group = "utilities"
	GroupRetail         Group = "retail"
	GroupGrocery        Group = "grocery"
	GroupFuel           Group = "fuel"
	GroupClothing       Group = "clothing"
	GroupRestaurants    Group = "restaurants"
	GroupMisc           Group = "miscellaneous_stores"
	GroupBusiness       Group = "business_services"
	GroupEntertainment  Group = "entertainment"
	GroupMedical        Group = "medical_services"
	GroupProfessional   Group = "professional_services"
	GroupGovernment     Group = "government_services"
)

// Codes outside the contiguous ranges, or carved out of them into a finer
// group than the surrounding range.
var exactCodes = map[int]Group{
	4511: GroupAirlines,
	7512: GroupCarRental,
	7513: GroupCarRental,
	7011: GroupLodging,

	// Grocery and food stores.
	5411: GroupGrocery,
	5422: GroupGrocery,
	5441: GroupGrocery,
	5451: GroupGrocery,
	5462: GroupGrocery,
	5499: GroupGrocery,

	// Fuel.
	5541: GroupFuel,
	5542: GroupFuel,
	5983: GroupFuel,

	// Eating and drinking places.
	5811: GroupRestaurants,
	5812: GroupRestaurants,
	5813: GroupRestaurants,
	5814: GroupRestaurants,
}

type span struct {
	group Group
	lo    int
	hi    int
}

var ranges = []span{
	{GroupAgricultural, 1, 1499},
	{GroupContracted, 1500, 2999},
	{GroupAirlines, 3000, 3299},
	{GroupCarRental, 3300, 3499},
	{GroupLodging, 3500, 3999},
	{GroupTransportation, 4000, 4799},
	{GroupUtilities, 4800, 4999},
	{GroupRetail, 5000, 5599},
	{GroupClothing, 5600, 5699},
	{GroupMisc, 5700, 7299},
	{GroupBusiness, 7300, 7799},
	{GroupEntertainment, 7800, 7999},
	{GroupMedical, 8000, 8099},
	{GroupProfessional, 8100, 8999},
	{GroupGovernment, 9000, 9999},
}

// Lookup resolves a merchant-category code to its group. The second return is
// false for codes outside the known table.
func Lookup(code int) (Group, bool) {
	if group, ok := exactCodes[code]; ok {
		return group, true
	}
	for _, r := range ranges {
		if code >= r.lo && code <= r.hi {
			return r.group, true
		}
	}
	return "", false
}
