package services

import (
	"math/rand/v2"

	"astrohub/internal/models"
)

var memoryCards = []models.MemoryCard{
	{Name: "Mars", ImageURL: "https://encrypted-tbn0.gstatic.com/images?q=tbn9GcRgXBghYx2s8GqEqwY1qVFmZl05KXEnKb5IqA&s"},
	{Name: "Milky Way", ImageURL: "https://media.istockphoto.com/id/480798670/photo/spiral-galaxy-illustration-of-milky-way.jpg?s=612x612&w=0&k=20&c=MLE2w9wM03YDWsk20Sd1-Pz4xdHDMc-8_v4Ar1JhiaQ="},
	{Name: "Space Station", ImageURL: "https://media.istockphoto.com/id/157506243/photo/international-space-station-iss.jpg?s=612x612&w=0&k=20&c=lVOPR-7Wrsvyu0QW21AJBMZZl3DqozEC2WC2ps7-NOk="},
	{Name: "Saturn", ImageURL: "https://cdn.esahubble.org/archives/images/screen/heic2312a.jpg"},
	{Name: "Earth", ImageURL: "https://images.pexels.com/photos/87651/earth-blue-planet-globe-planet-87651.jpeg?auto=compress&cs=tinysrgb&dpr=1&w=500"},
	{Name: "Venus", ImageURL: "https://solarsystem.nasa.gov/system/feature_items/images/27_venus_jg.png"},
	{Name: "Neptune", ImageURL: "https://media.istockphoto.com/id/533260861/photo/abstract-neptune-planet-generated-texture-background.jpg?s=612x612&w=0&k=20&c=Bt3Q8miiVcUhG74AJ-WL74IPMlaf_7HK_AVLFdZEq1U="},
	{Name: "Uranus", ImageURL: "https://c02.purpledshub.com/uploads/sites/48/2019/10/Hubble_Uranus-4b72360.jpg?webp=1&w=1200"},
}

// MemoryCards returns the memory game cards in a fresh random order
func MemoryCards() []models.MemoryCard {
	cards := make([]models.MemoryCard, len(memoryCards))
	copy(cards, memoryCards)
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}
