// Villager spawning: issues sequential ids and per-color names.
package agents

import "fmt"

// Spawner creates villagers for a village.
type Spawner struct {
	nextID VillagerID
	perEye map[EyeColor]int
}

// NewSpawner creates a spawner whose first villager gets id 1.
func NewSpawner() *Spawner {
	return &Spawner{
		nextID: 1,
		perEye: make(map[EyeColor]int),
	}
}

// Spawn creates one present villager. Names count per color ("Red 1", "Blue 1").
func (s *Spawner) Spawn(eyes EyeColor, typ VillagerType) *Villager {
	id := s.nextID
	s.nextID++
	s.perEye[eyes]++

	label := "Red"
	if eyes == Blue {
		label = "Blue"
	}

	return &Villager{
		ID:           id,
		Name:         fmt.Sprintf("%s %d", label, s.perEye[eyes]),
		Eyes:         eyes,
		Type:         typ,
		ReasoningLog: []string{},
	}
}
