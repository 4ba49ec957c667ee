package gen

import (
	"math"
	"strconv"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

var (
	countries   = []string{"US", "IN", "UK", "DE", "CA"}
	deviceTypes = []string{"mobile", "desktop"}
	deviceProbs = []float64{0.65, 0.35}

	categories = []string{"Electronics", "Apparel", "Beauty", "Home", "Sports", "Grocery"}

	priceBucketProbs = []float64{0.6, 0.3, 0.1}
	priceBuckets     = [][2]float64{
		{5.99, 39.99},
		{40.00, 149.99},
		{150.00, 499.99},
	}
)

// Users generates the synthetic shopper population. A user is "new" when
// they signed up within the first 30 days of the data window.
func Users(p Params) []model.User {
	r := p.rng(seedUsers)
	newUserCutoff := p.StartDate.AddDate(0, 0, 30)

	users := make([]model.User, p.Users)
	for i := range users {
		signup := randomDay(r, p.StartDate, p.EndDate)
		users[i] = model.User{
			UserID:     int64(i + 1),
			SignupTS:   signup,
			Country:    countries[r.IntN(len(countries))],
			DeviceType: deviceTypes[weightedChoice(r, deviceProbs)],
			IsNewUser:  !signup.After(newUserCutoff),
		}
	}
	return users
}

// Products generates the synthetic catalog with tiered pricing.
func Products(p Params) []model.Product {
	r := p.rng(seedProducts)

	products := make([]model.Product, p.Products)
	for i := range products {
		bucket := priceBuckets[weightedChoice(r, priceBucketProbs)]
		price := bucket[0] + r.Float64()*(bucket[1]-bucket[0])
		products[i] = model.Product{
			ProductID: strconv.Itoa(i + 1),
			Category:  categories[r.IntN(len(categories))],
			BasePrice: math.Round(price*100) / 100,
		}
	}
	return products
}
