// Package utils provides shared configuration loading and logging
// infrastructure used by every ghmigrate command.
package utils
