package ratings

// Badge tiers, highest first.
const (
	BadgeHero      = "Hero"
	BadgeChampion  = "Champion"
	BadgeExpert    = "Expert"
	BadgeSpeedster = "Speedster"
	BadgeBeginner  = "Beginner"
)

// Badge derives the tier from ride count and rating. Evaluated top
// down, first match wins.
func Badge(totalRides int, rating float64) string {
	switch {
	case totalRides >= 100 && rating >= 4.8:
		return BadgeHero
	case totalRides >= 50 && rating >= 4.5:
		return BadgeChampion
	case totalRides >= 25 && rating >= 4.0:
		return BadgeExpert
	case totalRides >= 10:
		return BadgeSpeedster
	default:
		return BadgeBeginner
	}
}
