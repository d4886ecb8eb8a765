// Package common contains the pieces shared by every loadit package:
//
//   - Error: the typed error carrying an ErrCode, matched with errors.Is against
//     the package sentinels (ErrOutOfRange, ErrConfiguration, ...)
//   - the dragonboat compatible logger factory and InitLoggers
//   - Section, a small formatter used to render configuration and metadata
package common
