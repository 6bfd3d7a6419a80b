// Package tgui holds small chat UI helpers that do not depend on a client
// library:
//   - HTML builders that escape by default (Telegram ParseMode="HTML")
//   - callback data in the "namespace:action:payload" form
//   - slice pagination and button grids for inline keyboards
package tgui
