package domain

import "slices"

type Item struct {
	Key   string
	Label string
	// Powertrains limits the item to some vehicles; empty means all.
	Powertrains []Powertrain
}

type Section struct {
	Key         string
	Name        string
	Weight      int
	Powertrains []Powertrain
	Items       []Item
}

var combustion = []Powertrain{PowertrainPetrol, PowertrainDiesel, PowertrainHybrid}

var catalog = []Section{
	{Key: "tyres", Name: "Tyres & Wheels", Weight: 3, Items: []Item{
		{Key: "front_left", Label: "Front left tread and condition"},
		{Key: "front_right", Label: "Front right tread and condition"},
		{Key: "rear_left", Label: "Rear left tread and condition"},
		{Key: "rear_right", Label: "Rear right tread and condition"},
		{Key: "wheel_nuts", Label: "Wheel nuts and locking key"},
	}},
	{Key: "brakes", Name: "Brakes", Weight: 3, Items: []Item{
		{Key: "front_pads", Label: "Front pads"},
		{Key: "rear_pads", Label: "Rear pads or shoes"},
		{Key: "discs", Label: "Discs"},
		{Key: "fluid", Label: "Brake fluid"},
		{Key: "handbrake", Label: "Parking brake"},
	}},
	{Key: "steering_suspension", Name: "Steering & Suspension", Weight: 2, Items: []Item{
		{Key: "shock_absorbers", Label: "Shock absorbers"},
		{Key: "springs", Label: "Springs"},
		{Key: "steering_joints", Label: "Track rod ends and joints"},
		{Key: "bushes", Label: "Bushes and mounts"},
	}},
	{Key: "engine", Name: "Engine Bay", Weight: 2, Powertrains: combustion, Items: []Item{
		{Key: "oil_level", Label: "Engine oil level and condition"},
		{Key: "coolant", Label: "Coolant level"},
		{Key: "drive_belts", Label: "Auxiliary drive belts"},
		{Key: "leaks", Label: "Oil and fluid leaks"},
		{Key: "glow_plugs", Label: "Glow plug operation", Powertrains: []Powertrain{PowertrainDiesel}},
	}},
	{Key: "exhaust", Name: "Exhaust & Emissions", Weight: 1, Powertrains: combustion, Items: []Item{
		{Key: "system", Label: "Exhaust system"},
		{Key: "mountings", Label: "Mountings"},
		{Key: "emissions", Label: "Emissions warning lights"},
		{Key: "dpf", Label: "Diesel particulate filter", Powertrains: []Powertrain{PowertrainDiesel}},
	}},
	{Key: "high_voltage", Name: "High Voltage System", Weight: 3, Powertrains: []Powertrain{PowertrainHybrid, PowertrainElectric}, Items: []Item{
		{Key: "battery_health", Label: "Traction battery health"},
		{Key: "cabling", Label: "Orange cabling and connectors"},
		{Key: "battery_cooling", Label: "Battery coolant level"},
		{Key: "charging_port", Label: "Charging port", Powertrains: []Powertrain{PowertrainElectric}},
	}},
	{Key: "lights_electrics", Name: "Lights & Electrics", Weight: 1, Items: []Item{
		{Key: "headlights", Label: "Headlights"},
		{Key: "indicators", Label: "Indicators and hazards"},
		{Key: "brake_lights", Label: "Brake lights"},
		{Key: "battery_12v", Label: "12V battery"},
	}},
	{Key: "visibility", Name: "Visibility", Weight: 1, Items: []Item{
		{Key: "windscreen", Label: "Windscreen"},
		{Key: "wipers", Label: "Wiper blades"},
		{Key: "washer_fluid", Label: "Washer fluid"},
		{Key: "mirrors", Label: "Mirrors"},
	}},
}

func applies(powertrains []Powertrain, p Powertrain) bool {
	return len(powertrains) == 0 || slices.Contains(powertrains, p)
}

// SectionsFor returns the sections and items that apply to a powertrain, in
// checklist order.
func SectionsFor(p Powertrain) []Section {
	var out []Section
	for _, section := range catalog {
		if !applies(section.Powertrains, p) {
			continue
		}
		trimmed := section
		trimmed.Items = nil
		for _, item := range section.Items {
			if applies(item.Powertrains, p) {
				trimmed.Items = append(trimmed.Items, item)
			}
		}
		out = append(out, trimmed)
	}
	return out
}
