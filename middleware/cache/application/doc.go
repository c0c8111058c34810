// Package application contém o caso de uso de fetch-and-cache sobre o contrato
// domain.Cache. Não conhece net/http.
package application
