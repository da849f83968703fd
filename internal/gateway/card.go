package gateway

import "settlement/internal/utils"

// CardBrand infers the network from the first digit of a card number.
func CardBrand(number string) string {
	digits := utils.DigitsOnly(number)
	if digits == "" {
		return ""
	}
	switch digits[0] {
	case '4':
		return "Visa"
	case '5':
		return "Mastercard"
	case '3':
		return "Amex"
	case '6':
		return "Discover"
	}
	return ""
}

// LastFour returns the last four digits of a card number, or all of them when
// there are fewer.
func LastFour(number string) string {
	digits := utils.DigitsOnly(number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}
