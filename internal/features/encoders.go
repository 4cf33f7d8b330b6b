// Package features turns structured skill payloads into fixed-length numeric
// vectors consumed directly by the inference backend.
//
// Feature ordering is a load-bearing contract: trained models expect a stable
// field order per builder, so the slot layout documented on each builder must
// be preserved rather than re-derived.
package features

// Builder converts a payload into a fixed-length feature vector. Builders are
// deterministic and total: missing fields contribute zero, they never fail.
type Builder func(payload Payload, inputDim int) Vector

// builders is the fixed family of domain builders keyed by manifest name.
var builders = map[string]Builder{
	"education":     BuildEducation,
	"retail":        BuildRetail,
	"travel":        BuildTravel,
	"health":        BuildHealth,
	"finance":       BuildFinance,
	"hospitality":   BuildHospitality,
	"logistics":     BuildLogistics,
	"manufacturing": BuildManufacturing,
	"agriculture":   BuildAgriculture,
	"energy":        BuildEnergy,
	"security":      BuildSecurity,
	"entertainment": BuildEntertainment,
}

// Resolve returns the builder registered under name.
func Resolve(name string) (Builder, bool) {
	builder, ok := builders[name]
	return builder, ok
}

// BuilderNames returns the set of registered builder names.
func BuilderNames() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	return names
}

// BuildEducation encodes tutoring requests.
// Slots: gradeLevel/12, score:maxScore, attendanceRate, LinearFeats(question) x5,
// keywords(question): homework, exam, essay, quiz.
func BuildEducation(p Payload, inputDim int) Vector {
	question := p.Text("question")
	values := []float64{
		Normalize(p.Float("gradeLevel"), 12),
		Ratio(p.Float("score"), p.Float("maxScore")),
		Normalize(p.Float("attendanceRate"), 1),
	}
	values = append(values, LinearFeats(question)...)
	values = append(values, KeywordFeats(question, []string{"homework", "exam", "essay", "quiz"})...)
	return ComposeVector(inputDim, values)
}

// BuildRetail encodes shopping and price-check requests.
// Slots: price/500, listPrice/500, price:listPrice, loyalCustomer,
// cartSize/20, keywords(query): refund, price, stock, coupon.
func BuildRetail(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("price"), 500),
		Normalize(p.Float("listPrice"), 500),
		Ratio(p.Float("price"), p.Float("listPrice")),
		p.Bool("loyalCustomer"),
		Normalize(p.Float("cartSize"), 20),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"refund", "price", "stock", "coupon"})...)
	return ComposeVector(inputDim, values)
}

// BuildTravel encodes trip-planning requests.
// Slots: distanceKm/10000, durationDays/30, budget/10000, passengers/10,
// international, keywords(query): flight, hotel, visa, train.
func BuildTravel(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("distanceKm"), 10000),
		Normalize(p.Float("durationDays"), 30),
		Normalize(p.Float("budget"), 10000),
		Normalize(p.Float("passengers"), 10),
		p.Bool("international"),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"flight", "hotel", "visa", "train"})...)
	return ComposeVector(inputDim, values)
}

// BuildHealth encodes wellness check-in requests.
// Slots: heartRate/200, temperature/45, systolic/250, diastolic/150, age/120,
// chronic, keywords(symptoms): pain, fever, dizzy, nausea.
func BuildHealth(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("heartRate"), 200),
		Normalize(p.Float("temperature"), 45),
		Normalize(p.Float("systolic"), 250),
		Normalize(p.Float("diastolic"), 150),
		Normalize(p.Float("age"), 120),
		p.Bool("chronic"),
	}
	values = append(values, KeywordFeats(p.Text("symptoms"), []string{"pain", "fever", "dizzy", "nausea"})...)
	return ComposeVector(inputDim, values)
}

// BuildFinance encodes personal-finance requests.
// Slots: amount/100000, balance/1000000, amount:balance, creditScore/850,
// overdue, keywords(query): loan, invest, transfer, tax.
func BuildFinance(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("amount"), 100000),
		Normalize(p.Float("balance"), 1000000),
		Ratio(p.Float("amount"), p.Float("balance")),
		Normalize(p.Float("creditScore"), 850),
		p.Bool("overdue"),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"loan", "invest", "transfer", "tax"})...)
	return ComposeVector(inputDim, values)
}

// BuildHospitality encodes lodging and guest-service requests.
// Slots: partySize/20, nights/30, roomRate/1000, occupied:capacity, vip,
// keywords(query): breakfast, checkout, booking, spa.
func BuildHospitality(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("partySize"), 20),
		Normalize(p.Float("nights"), 30),
		Normalize(p.Float("roomRate"), 1000),
		Ratio(p.Float("occupied"), p.Float("capacity")),
		p.Bool("vip"),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"breakfast", "checkout", "booking", "spa"})...)
	return ComposeVector(inputDim, values)
}

// BuildLogistics encodes shipment and delivery requests.
// Slots: weightKg/1000, distanceKm/5000, loaded:capacity, express, stops/50,
// keywords(query): delivery, pickup, customs, tracking.
func BuildLogistics(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("weightKg"), 1000),
		Normalize(p.Float("distanceKm"), 5000),
		Ratio(p.Float("loaded"), p.Float("capacity")),
		p.Bool("express"),
		Normalize(p.Float("stops"), 50),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"delivery", "pickup", "customs", "tracking"})...)
	return ComposeVector(inputDim, values)
}

// BuildManufacturing encodes production-floor requests.
// Slots: unitsPlanned/10000, unitsProduced/10000, defects:unitsProduced,
// machineTemp/150, downtimeMinutes/480, keywords(query): assembly, defect,
// maintenance, shift.
func BuildManufacturing(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("unitsPlanned"), 10000),
		Normalize(p.Float("unitsProduced"), 10000),
		Ratio(p.Float("defects"), p.Float("unitsProduced")),
		Normalize(p.Float("machineTemp"), 150),
		Normalize(p.Float("downtimeMinutes"), 480),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"assembly", "defect", "maintenance", "shift"})...)
	return ComposeVector(inputDim, values)
}

// BuildAgriculture encodes farm-management requests.
// Slots: fieldHectares/1000, soilMoisture, temperature/50, rainfallMm/500,
// irrigated, keywords(query): harvest, pest, seed, fertilizer.
func BuildAgriculture(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("fieldHectares"), 1000),
		Normalize(p.Float("soilMoisture"), 1),
		Normalize(p.Float("temperature"), 50),
		Normalize(p.Float("rainfallMm"), 500),
		p.Bool("irrigated"),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"harvest", "pest", "seed", "fertilizer"})...)
	return ComposeVector(inputDim, values)
}

// BuildEnergy encodes grid and consumption requests.
// Slots: loadKw/10000, capacityKw/10000, loadKw:capacityKw, price/500,
// renewable, keywords(query): outage, solar, meter, grid.
func BuildEnergy(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("loadKw"), 10000),
		Normalize(p.Float("capacityKw"), 10000),
		Ratio(p.Float("loadKw"), p.Float("capacityKw")),
		Normalize(p.Float("price"), 500),
		p.Bool("renewable"),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"outage", "solar", "meter", "grid"})...)
	return ComposeVector(inputDim, values)
}

// BuildSecurity encodes account and device security requests.
// Slots: failedLogins/100, sessionMinutes/480, privileged, blocked:attempts,
// keywords(event): breach, malware, phishing, firewall.
func BuildSecurity(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("failedLogins"), 100),
		Normalize(p.Float("sessionMinutes"), 480),
		p.Bool("privileged"),
		Ratio(p.Float("blocked"), p.Float("attempts")),
	}
	values = append(values, KeywordFeats(p.Text("event"), []string{"breach", "malware", "phishing", "firewall"})...)
	return ComposeVector(inputDim, values)
}

// BuildEntertainment encodes media and leisure requests.
// Slots: watchMinutes/600, rating/10, episodes/100, subscriber,
// keywords(query): movie, music, game, stream.
func BuildEntertainment(p Payload, inputDim int) Vector {
	values := []float64{
		Normalize(p.Float("watchMinutes"), 600),
		Normalize(p.Float("rating"), 10),
		Normalize(p.Float("episodes"), 100),
		p.Bool("subscriber"),
	}
	values = append(values, KeywordFeats(p.Text("query"), []string{"movie", "music", "game", "stream"})...)
	return ComposeVector(inputDim, values)
}
