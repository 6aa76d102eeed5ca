// README: Common value objects used across modules (backend ids, chat ids, money).
package types

import "strconv"

// ID is a numeric backend primary key.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ChatID identifies a Telegram chat. For private chats it equals the user id.
type ChatID int64

func (c ChatID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

const DefaultCurrency = "UZS"

// Money amounts are whole currency units; the backend has no minor units for UZS.
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}
